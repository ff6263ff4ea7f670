package sql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/bcnelson/hub-acl-manager/internal/domain"
	"github.com/bcnelson/hub-acl-manager/internal/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	return strings.Contains(errStr, "duplicate key value violates unique constraint")
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Ensure Store implements storage.Storage.
var _ storage.Storage = (*Store)(nil)

// New connects to the database and runs the embedded migrations.
// driver is "sqlite3" or "postgres".
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if driver == "sqlite3" {
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling sqlite foreign keys: %w", err)
		}
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// dbInterface is satisfied by both *sqlx.DB and *sqlx.Tx.
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func expectRows(result sql.Result, err error) error {
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ============================================
// Hubs
// ============================================

const hubColumns = `id, name, mode, gateway, gateway_mask, network, network_mask, created_at, updated_at`

func createHub(ctx context.Context, db dbInterface, hub *domain.Hub) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO hubs (`+hubColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		hub.ID, hub.Name, hub.Mode, hub.Gateway, hub.GatewayMask, hub.Network, hub.NetworkMask,
		hub.CreatedAt, hub.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateHub(ctx context.Context, hub *domain.Hub) error {
	return createHub(ctx, s.db, hub)
}

func (t *Tx) CreateHub(ctx context.Context, hub *domain.Hub) error {
	return createHub(ctx, t.tx, hub)
}

func getHub(ctx context.Context, db dbInterface, column, value string) (*domain.Hub, error) {
	var hub domain.Hub
	err := db.GetContext(ctx, &hub, `SELECT `+hubColumns+` FROM hubs WHERE `+column+` = $1`, value)
	if err != nil {
		return nil, notFound(err)
	}
	return &hub, nil
}

func (s *Store) GetHub(ctx context.Context, id string) (*domain.Hub, error) {
	return getHub(ctx, s.db, "id", id)
}

func (t *Tx) GetHub(ctx context.Context, id string) (*domain.Hub, error) {
	return getHub(ctx, t.tx, "id", id)
}

func (s *Store) GetHubByName(ctx context.Context, name string) (*domain.Hub, error) {
	return getHub(ctx, s.db, "name", name)
}

func (t *Tx) GetHubByName(ctx context.Context, name string) (*domain.Hub, error) {
	return getHub(ctx, t.tx, "name", name)
}

func listHubs(ctx context.Context, db dbInterface) ([]*domain.Hub, error) {
	var hubs []*domain.Hub
	if err := db.SelectContext(ctx, &hubs, `SELECT `+hubColumns+` FROM hubs ORDER BY name`); err != nil {
		return nil, err
	}
	return hubs, nil
}

func (s *Store) ListHubs(ctx context.Context) ([]*domain.Hub, error) {
	return listHubs(ctx, s.db)
}

func (t *Tx) ListHubs(ctx context.Context) ([]*domain.Hub, error) {
	return listHubs(ctx, t.tx)
}

func updateHub(ctx context.Context, db dbInterface, hub *domain.Hub) error {
	return expectRows(db.ExecContext(ctx,
		`UPDATE hubs SET mode = $1, gateway = $2, gateway_mask = $3, network = $4, network_mask = $5, updated_at = $6
		 WHERE id = $7`,
		hub.Mode, hub.Gateway, hub.GatewayMask, hub.Network, hub.NetworkMask, hub.UpdatedAt, hub.ID))
}

func (s *Store) UpdateHub(ctx context.Context, hub *domain.Hub) error {
	return updateHub(ctx, s.db, hub)
}

func (t *Tx) UpdateHub(ctx context.Context, hub *domain.Hub) error {
	return updateHub(ctx, t.tx, hub)
}

func deleteHub(ctx context.Context, db dbInterface, id string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM hub_devices WHERE hub_id = $1`, id); err != nil {
		return err
	}
	return expectRows(db.ExecContext(ctx, `DELETE FROM hubs WHERE id = $1`, id))
}

func (s *Store) DeleteHub(ctx context.Context, id string) error {
	return deleteHub(ctx, s.db, id)
}

func (t *Tx) DeleteHub(ctx context.Context, id string) error {
	return deleteHub(ctx, t.tx, id)
}

// ============================================
// Devices
// ============================================

const deviceColumns = `id, hub_id, name, address, created_at, updated_at`

func createDevice(ctx context.Context, db dbInterface, device *domain.HubDevice) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO hub_devices (`+deviceColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		device.ID, device.HubID, device.Name, device.Address, device.CreatedAt, device.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateDevice(ctx context.Context, device *domain.HubDevice) error {
	return createDevice(ctx, s.db, device)
}

func (t *Tx) CreateDevice(ctx context.Context, device *domain.HubDevice) error {
	return createDevice(ctx, t.tx, device)
}

func getDevice(ctx context.Context, db dbInterface, hubID, name string) (*domain.HubDevice, error) {
	var device domain.HubDevice
	err := db.GetContext(ctx, &device,
		`SELECT `+deviceColumns+` FROM hub_devices WHERE hub_id = $1 AND name = $2`, hubID, name)
	if err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

func (s *Store) GetDevice(ctx context.Context, hubID, name string) (*domain.HubDevice, error) {
	return getDevice(ctx, s.db, hubID, name)
}

func (t *Tx) GetDevice(ctx context.Context, hubID, name string) (*domain.HubDevice, error) {
	return getDevice(ctx, t.tx, hubID, name)
}

func listDevices(ctx context.Context, db dbInterface, hubID string) ([]*domain.HubDevice, error) {
	devices := []*domain.HubDevice{}
	err := db.SelectContext(ctx, &devices,
		`SELECT `+deviceColumns+` FROM hub_devices WHERE hub_id = $1 ORDER BY name`, hubID)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (s *Store) ListDevices(ctx context.Context, hubID string) ([]*domain.HubDevice, error) {
	return listDevices(ctx, s.db, hubID)
}

func (t *Tx) ListDevices(ctx context.Context, hubID string) ([]*domain.HubDevice, error) {
	return listDevices(ctx, t.tx, hubID)
}

func deleteDevice(ctx context.Context, db dbInterface, hubID, name string) error {
	return expectRows(db.ExecContext(ctx,
		`DELETE FROM hub_devices WHERE hub_id = $1 AND name = $2`, hubID, name))
}

func (s *Store) DeleteDevice(ctx context.Context, hubID, name string) error {
	return deleteDevice(ctx, s.db, hubID, name)
}

func (t *Tx) DeleteDevice(ctx context.Context, hubID, name string) error {
	return deleteDevice(ctx, t.tx, hubID, name)
}

func deleteAllDevicesForHub(ctx context.Context, db dbInterface, hubID string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM hub_devices WHERE hub_id = $1`, hubID)
	return err
}

func (s *Store) DeleteAllDevicesForHub(ctx context.Context, hubID string) error {
	return deleteAllDevicesForHub(ctx, s.db, hubID)
}

func (t *Tx) DeleteAllDevicesForHub(ctx context.Context, hubID string) error {
	return deleteAllDevicesForHub(ctx, t.tx, hubID)
}

// ============================================
// Access list versions
// ============================================

const versionColumns = `id, hub_name, version_number, rendered_rules, rule_count, push_status, push_error, created_at, pushed_at`

func createAccessListVersion(ctx context.Context, db dbInterface, v *domain.AccessListVersion) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO access_list_versions (`+versionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		v.ID, v.HubName, v.VersionNumber, v.RenderedRules, v.RuleCount, v.PushStatus, v.PushError,
		v.CreatedAt, v.PushedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error {
	return createAccessListVersion(ctx, s.db, version)
}

func (t *Tx) CreateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error {
	return createAccessListVersion(ctx, t.tx, version)
}

func getAccessListVersion(ctx context.Context, db dbInterface, id string) (*domain.AccessListVersion, error) {
	var version domain.AccessListVersion
	err := db.GetContext(ctx, &version,
		`SELECT `+versionColumns+` FROM access_list_versions WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &version, nil
}

func (s *Store) GetAccessListVersion(ctx context.Context, id string) (*domain.AccessListVersion, error) {
	return getAccessListVersion(ctx, s.db, id)
}

func (t *Tx) GetAccessListVersion(ctx context.Context, id string) (*domain.AccessListVersion, error) {
	return getAccessListVersion(ctx, t.tx, id)
}

func getLatestAccessListVersion(ctx context.Context, db dbInterface, hubName string) (*domain.AccessListVersion, error) {
	var version domain.AccessListVersion
	err := db.GetContext(ctx, &version,
		`SELECT `+versionColumns+` FROM access_list_versions WHERE hub_name = $1
		 ORDER BY version_number DESC LIMIT 1`, hubName)
	if err != nil {
		return nil, notFound(err)
	}
	return &version, nil
}

func (s *Store) GetLatestAccessListVersion(ctx context.Context, hubName string) (*domain.AccessListVersion, error) {
	return getLatestAccessListVersion(ctx, s.db, hubName)
}

func (t *Tx) GetLatestAccessListVersion(ctx context.Context, hubName string) (*domain.AccessListVersion, error) {
	return getLatestAccessListVersion(ctx, t.tx, hubName)
}

func listAccessListVersions(ctx context.Context, db dbInterface, hubName string, limit, offset int) ([]*domain.AccessListVersion, error) {
	versions := []*domain.AccessListVersion{}
	err := db.SelectContext(ctx, &versions,
		`SELECT `+versionColumns+` FROM access_list_versions WHERE hub_name = $1
		 ORDER BY version_number DESC LIMIT $2 OFFSET $3`, hubName, limit, offset)
	return versions, err
}

func (s *Store) ListAccessListVersions(ctx context.Context, hubName string, limit, offset int) ([]*domain.AccessListVersion, error) {
	return listAccessListVersions(ctx, s.db, hubName, limit, offset)
}

func (t *Tx) ListAccessListVersions(ctx context.Context, hubName string, limit, offset int) ([]*domain.AccessListVersion, error) {
	return listAccessListVersions(ctx, t.tx, hubName, limit, offset)
}

func updateAccessListVersion(ctx context.Context, db dbInterface, v *domain.AccessListVersion) error {
	return expectRows(db.ExecContext(ctx,
		`UPDATE access_list_versions SET push_status = $1, push_error = $2, pushed_at = $3 WHERE id = $4`,
		v.PushStatus, v.PushError, v.PushedAt, v.ID))
}

func (s *Store) UpdateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error {
	return updateAccessListVersion(ctx, s.db, version)
}

func (t *Tx) UpdateAccessListVersion(ctx context.Context, version *domain.AccessListVersion) error {
	return updateAccessListVersion(ctx, t.tx, version)
}
