package kb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"kblookup/rag"
)

// entryRow is one knowledge base entry in SQLite.
// A NULL or empty embedding blob marks the entry as not yet embedded.
type entryRow struct {
	Ord       int    `gorm:"primaryKey;autoIncrement:false"`
	EntryID   string `gorm:"column:entry_id;uniqueIndex;not null"`
	Text      string `gorm:"not null"`
	Embedding []byte
}

func (entryRow) TableName() string { return "kb_entries" }

func openSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

func closeSQLite(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// LoadSQLite reads the kb_entries table of an existing database file.
func LoadSQLite(path string) (*rag.KnowledgeBase, error) {
	// opening a missing file would silently create an empty database
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrLoad, path, err)
	}
	defer closeSQLite(db)

	if !db.Migrator().HasTable(&entryRow{}) {
		return nil, fmt.Errorf("%w: %s has no kb_entries table", ErrLoad, path)
	}

	var rows []entryRow
	if err := db.Order("ord").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: read entries: %w", ErrLoad, err)
	}

	entries := make([]rag.Entry, 0, len(rows))
	for _, row := range rows {
		vec, err := bytesToFloats(row.Embedding)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %w", ErrLoad, row.EntryID, err)
		}
		entries = append(entries, toEntry(row.EntryID, record{Text: row.Text, Embedding: vec}))
	}

	kb, err := rag.NewKnowledgeBase(entries...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return kb, nil
}

// SaveSQLite replaces the kb_entries table of the database at path with kb.
func SaveSQLite(path string, kb *rag.KnowledgeBase) error {
	if kb == nil {
		return errors.New("nil knowledge base")
	}
	db, err := openSQLite(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer closeSQLite(db)

	if err := db.AutoMigrate(&entryRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	entries := kb.Entries()
	rows := make([]entryRow, len(entries))
	for i, e := range entries {
		rows[i] = entryRow{Ord: i, EntryID: e.ID, Text: e.Text}
		if e.Embedded {
			rows[i].Embedding = floatsToBytes(e.Embedding)
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entryRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}

func floatsToBytes(v []float64) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func bytesToFloats(b []byte) ([]float64, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 8", len(b))
	}
	out := make([]float64, len(b)/8)
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}
