package config

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/chrissnell/actisum/pkg/migrate"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var configMigrations embed.FS

// boutsKey is stored in the bout_rules table rather than in settings
const boutsKey = "processing.bouts"

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
//
// Every scalar or list option is one row of the settings table, keyed by its
// dotted YAML path (processing.nonwear_window, storage.sqlite.path, ...) with a
// YAML-encoded value. Bout rules live in their own table, ordered by position.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens (creating if needed) a SQLite configuration database
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrations, err := migrate.FromFS(configMigrations, "migrations")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate.NewMigrator(db, migrations, nil).MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	tree, err := s.settingsTree()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	doc, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble settings: %w", err)
	}
	config, err := decodeYAML(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", s.dbPath, err)
	}

	bouts, err := s.GetBoutRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load bout rules: %w", err)
	}
	if len(bouts) > 0 {
		config.Processing.Bouts = bouts
	}

	return config, nil
}

// settingsTree nests the dotted settings keys into the map shape of a YAML
// configuration document
func (s *SQLiteProvider) settingsTree() (map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	tree := make(map[string]interface{})
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}

		var v interface{}
		if err := yaml.Unmarshal([]byte(value), &v); err != nil {
			return nil, fmt.Errorf("setting %s: %w", key, err)
		}

		parts := strings.Split(key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = make(map[string]interface{})
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return tree, rows.Err()
}

// GetProcessing returns the processing configuration
func (s *SQLiteProvider) GetProcessing() (*ProcessingData, error) {
	config, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Processing, nil
}

// GetStorageConfig returns storage configuration from the database
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	config, err := s.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &config.Storage, nil
}

// GetBoutRules returns the configured bout rules in order
func (s *SQLiteProvider) GetBoutRules() ([]BoutRuleData, error) {
	rows, err := s.db.Query(`
		SELECT name, min_band, max_band, min_length, tolerance, tolerance_upper_bound
		FROM bout_rules
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bout rules: %w", err)
	}
	defer rows.Close()

	var rules []BoutRuleData
	for rows.Next() {
		var r BoutRuleData
		var upper sql.NullFloat64
		if err := rows.Scan(&r.Name, &r.MinBand, &r.MaxBand, &r.MinLength, &r.Tolerance, &upper); err != nil {
			return nil, fmt.Errorf("failed to scan bout rule row: %w", err)
		}
		if upper.Valid {
			v := upper.Float64
			r.ToleranceUpperBound = &v
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SetSetting stores one option under its dotted key. The value must be valid YAML.
func (s *SQLiteProvider) SetSetting(key, value string) error {
	if key == "" || key == boutsKey {
		return fmt.Errorf("invalid settings key %q", key)
	}
	var v interface{}
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// SetBoutRules replaces the configured bout rules
func (s *SQLiteProvider) SetBoutRules(rules []BoutRuleData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := replaceBoutRules(tx, rules); err != nil {
		return err
	}
	return tx.Commit()
}

func replaceBoutRules(tx *sql.Tx, rules []BoutRuleData) error {
	if _, err := tx.Exec(`DELETE FROM bout_rules`); err != nil {
		return fmt.Errorf("failed to clear bout rules: %w", err)
	}
	for i, r := range rules {
		var upper sql.NullFloat64
		if r.ToleranceUpperBound != nil {
			upper = sql.NullFloat64{Float64: *r.ToleranceUpperBound, Valid: true}
		}
		_, err := tx.Exec(`
			INSERT INTO bout_rules (position, name, min_band, max_band, min_length, tolerance, tolerance_upper_bound)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, i, r.Name, r.MinBand, r.MaxBand, r.MinLength, r.Tolerance, upper)
		if err != nil {
			return fmt.Errorf("failed to insert bout rule %s: %w", r.Name, err)
		}
	}
	return nil
}

// SaveConfig replaces the stored configuration with config
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	doc, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(doc, &tree); err != nil {
		return fmt.Errorf("failed to flatten configuration: %w", err)
	}

	settings := make(map[string]string)
	if err := flattenSettings("", tree, settings); err != nil {
		return err
	}
	delete(settings, boutsKey)

	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM settings`); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, k, settings[k]); err != nil {
			return fmt.Errorf("failed to store setting %s: %w", k, err)
		}
	}
	if err := replaceBoutRules(tx, config.Processing.Bouts); err != nil {
		return err
	}
	return tx.Commit()
}

func flattenSettings(prefix string, node map[string]interface{}, out map[string]string) error {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]interface{}); ok && key != "processing.rollup_reducers" {
			if err := flattenSettings(key, child, out); err != nil {
				return err
			}
			continue
		}
		value, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode setting %s: %w", key, err)
		}
		out[key] = strings.TrimSpace(string(value))
	}
	return nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	return s.db.Close()
}
