package sqlstore

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursetalk/internal/forum"
)

// Store is the relational forum backend.
type Store struct {
	db *gorm.DB
}

var _ forum.Backend = (*Store)(nil)

// Open connects to Postgres and migrates the schema.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	return New(db)
}

// New wraps an existing gorm connection (tests use this with sqlite) and
// migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(
		&userRow{},
		&threadRow{},
		&commentRow{},
		&userVoteRow{},
		&abuseFlaggerRow{},
		&historicalAbuseFlaggerRow{},
		&editHistoryRow{},
		&courseStatRow{},
		&readStateRow{},
		&lastReadTimeRow{},
		&subscriptionRow{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "migrate forum schema")
	}
	log.WithField("backend", "sql").Debug("forum schema migrated")
	return &Store{db: db}, nil
}

// parsePK parses an external content id. The relational backend's external
// ids are the decimal form of its primary keys.
func parsePK(id string) (uint64, bool) {
	pk, err := strconv.ParseUint(id, 10, 64)
	if err != nil || pk == 0 {
		return 0, false
	}
	return pk, true
}

// parsePKs drops unparsable ids silently; unknown candidates are not errors.
func parsePKs(ids []string) []uint64 {
	pks := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if pk, ok := parsePK(id); ok {
			pks = append(pks, pk)
		}
	}
	return pks
}

func formatPK(pk uint64) string {
	return strconv.FormatUint(pk, 10)
}

// ObjectIDToPK parses a 24-hex-character document id as a base-16 integer.
// This is the migration-time convention that keeps cross-backend id
// correspondence stable; steady-state ids are plain decimal keys.
func ObjectIDToPK(objectID string) (*big.Int, error) {
	if len(objectID) != 24 {
		return nil, forum.InvalidArgumentf("object id %q", objectID)
	}
	pk, ok := new(big.Int).SetString(objectID, 16)
	if !ok {
		return nil, forum.InvalidArgumentf("object id %q", objectID)
	}
	return pk, nil
}

// PKToObjectID renders a migrated primary key back to its 24-hex form.
func PKToObjectID(pk *big.Int) string {
	s := pk.Text(16)
	if len(s) < 24 {
		s = strings.Repeat("0", 24-len(s)) + s
	}
	return s
}
