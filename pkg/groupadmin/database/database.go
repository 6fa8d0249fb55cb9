package database

import (
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mikepea/groupadmin/pkg/groupadmin/logging"
	"github.com/mikepea/groupadmin/pkg/groupadmin/models"
)

// Connect initializes the database connection and runs migrations.
// For now, uses SQLite. Can be swapped to another GORM driver later.
func Connect(dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dsn)
	}

	// One connection: sqlite has a single writer and ":memory:" lives per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "sql handle")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := models.AutoMigrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate")
	}
	logging.OrDiscard(log).WithField("dsn", dsn).Info("Database migrations completed")

	return db, nil
}
