package crlstore

import (
	"bytes"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/sensiblebit/revcheck"
	_ "modernc.org/sqlite"
)

// sqliteCertRow maps a row in the SQLite certificates table.
type sqliteCertRow struct {
	SerialNumber           string         `db:"serial_number"`
	AuthorityKeyIdentifier string         `db:"authority_key_identifier"`
	CertType               string         `db:"cert_type"`
	KeyType                string         `db:"key_type"`
	Expiry                 time.Time      `db:"expiry"`
	CommonName             sql.NullString `db:"common_name"`
	CRLURLsJSON            types.JSONText `db:"crl_urls"`
	PEM                    string         `db:"pem"`
	Source                 string         `db:"source"`
}

// sqliteCRLRow maps a row in the SQLite crls table.
type sqliteCRLRow struct {
	Fingerprint string         `db:"fingerprint"`
	Issuer      string         `db:"issuer"`
	CRLNumber   sql.NullString `db:"crl_number"`
	ThisUpdate  time.Time      `db:"this_update"`
	NextUpdate  *time.Time     `db:"next_update"`
	Entries     int            `db:"entries"`
	ScopeJSON   types.JSONText `db:"scope"`
	PEM         string         `db:"pem"`
	Source      string         `db:"source"`
}

// crlScope is the JSON form of an issuingDistributionPoint kept alongside
// each CRL for inspection with external SQLite tools.
type crlScope struct {
	URIs            []string `json:"uris,omitempty"`
	OnlyUserCerts   bool     `json:"only_user_certs,omitempty"`
	OnlyCACerts     bool     `json:"only_ca_certs,omitempty"`
	OnlySomeReasons []string `json:"only_some_reasons,omitempty"`
	IndirectCRL     bool     `json:"indirect_crl,omitempty"`
	OnlyAttrCerts   bool     `json:"only_attribute_certs,omitempty"`
}

func scopeJSON(idp *revcheck.IssuingDistributionPoint) types.JSONText {
	if idp == nil {
		return nil
	}
	scope := crlScope{
		URIs:          idp.URIs,
		OnlyUserCerts: idp.OnlyContainsUserCerts,
		OnlyCACerts:   idp.OnlyContainsCACerts,
		IndirectCRL:   idp.IndirectCRL,
		OnlyAttrCerts: idp.OnlyContainsAttributeCerts,
	}
	if idp.HasOnlySomeReasons {
		scope.OnlySomeReasons = idp.OnlySomeReasons.Names()
	}
	data, err := json.Marshal(scope)
	if err != nil {
		return nil
	}
	return types.JSONText(data)
}

// openMemDB creates an in-memory SQLite database with the revcheck schema.
func openMemDB() (*sqlx.DB, error) {
	dsn := "file::memory:?_pragma=temp_store(2)&_pragma=journal_mode(off)&_pragma=synchronous(off)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return db, nil
}

// initSQLiteSchema creates the certificates and crls tables.
func initSQLiteSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS certificates (
			serial_number            text NOT NULL,
			authority_key_identifier text NOT NULL,
			cert_type                text NOT NULL,
			key_type                 text NOT NULL,
			expiry                   timestamp,
			common_name              text,
			crl_urls                 text,
			pem                      text NOT NULL,
			source                   text NOT NULL,
			PRIMARY KEY(serial_number, authority_key_identifier)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating certificates table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS crls (
			fingerprint  text PRIMARY KEY,
			issuer       text NOT NULL,
			crl_number   text,
			this_update  timestamp NOT NULL,
			next_update  timestamp,
			entries      integer NOT NULL,
			scope        text,
			pem          text NOT NULL,
			source       text NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating crls table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_crls_issuer ON crls (issuer);
	`)
	if err != nil {
		return fmt.Errorf("creating issuer index: %w", err)
	}
	return nil
}

// LoadFromSQLite opens a SQLite database file and copies its certificates
// and CRLs into the given MemStore. Stored PEM goes back through the same
// strict reader used for files.
func LoadFromSQLite(store *MemStore, dbPath string) error {
	db, err := openMemDB()
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	// ATTACH the on-disk database and copy data into memory
	_, err = db.Exec("ATTACH DATABASE ? AS diskdb", dbPath)
	if err != nil {
		return fmt.Errorf("attaching database %s: %w", dbPath, err)
	}
	defer func() {
		if _, detachErr := db.Exec("DETACH DATABASE diskdb"); detachErr != nil {
			slog.Warn("detaching database", "path", dbPath, "error", detachErr)
		}
	}()

	if _, err = db.Exec("INSERT OR IGNORE INTO certificates SELECT * FROM diskdb.certificates"); err != nil {
		return fmt.Errorf("loading certificates from %s: %w", dbPath, err)
	}
	if _, err = db.Exec("INSERT OR IGNORE INTO crls SELECT * FROM diskdb.crls"); err != nil {
		return fmt.Errorf("loading CRLs from %s: %w", dbPath, err)
	}

	var certs []sqliteCertRow
	if err := db.Select(&certs, "SELECT * FROM certificates"); err != nil {
		return fmt.Errorf("reading certificates: %w", err)
	}
	for _, c := range certs {
		parsed, err := revcheck.ReadCertificates(bytes.NewReader([]byte(c.PEM)))
		if err != nil {
			slog.Debug("skipping certificate with unreadable PEM", "serial", c.SerialNumber, "error", err)
			continue
		}
		if err := store.HandleCertificate(parsed[0], c.Source); err != nil {
			slog.Warn("loading cert from DB", "serial", c.SerialNumber, "error", err)
		}
	}

	var crls []sqliteCRLRow
	if err := db.Select(&crls, "SELECT * FROM crls"); err != nil {
		return fmt.Errorf("reading CRLs: %w", err)
	}
	for _, c := range crls {
		parsed, err := revcheck.ReadRevocationLists(bytes.NewReader([]byte(c.PEM)))
		if err != nil {
			slog.Debug("skipping CRL with unreadable PEM", "fingerprint", c.Fingerprint, "error", err)
			continue
		}
		if err := store.HandleRevocationList(parsed[0], c.Source); err != nil {
			slog.Warn("loading CRL from DB", "fingerprint", c.Fingerprint, "error", err)
		}
	}

	slog.Info("loaded database into store", "path", dbPath, "certificates", len(certs), "crls", len(crls))
	return nil
}

// SaveToSQLite writes the contents of a MemStore to a SQLite database file.
func SaveToSQLite(store *MemStore, dbPath string) error {
	db, err := openMemDB()
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	for _, rec := range store.AllCertsFlat() {
		certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: rec.Cert.Raw})
		urlsJSON, _ := json.Marshal(rec.Cert.CRLDistributionPoints)

		row := sqliteCertRow{
			SerialNumber:           rec.Cert.SerialNumber.String(),
			AuthorityKeyIdentifier: hex.EncodeToString(rec.Cert.AuthorityKeyId),
			CertType:               rec.CertType,
			KeyType:                rec.KeyType,
			Expiry:                 rec.Cert.NotAfter,
			CommonName:             sql.NullString{String: rec.Cert.Subject.CommonName, Valid: rec.Cert.Subject.CommonName != ""},
			CRLURLsJSON:            types.JSONText(urlsJSON),
			PEM:                    string(certPEM),
			Source:                 rec.Source,
		}
		_, err := db.NamedExec(`
			INSERT OR IGNORE INTO certificates (serial_number, authority_key_identifier, cert_type, key_type, expiry, common_name, crl_urls, pem, source)
			VALUES (:serial_number, :authority_key_identifier, :cert_type, :key_type, :expiry, :common_name, :crl_urls, :pem, :source)
		`, row)
		if err != nil {
			slog.Warn("saving cert to DB", "serial", rec.Cert.SerialNumber, "error", err)
		}
	}

	for _, rec := range store.AllCRLsFlat() {
		crlPEM := pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: rec.CRL.Raw})

		row := sqliteCRLRow{
			Fingerprint: rec.Fingerprint,
			Issuer:      rec.CRL.Issuer.String(),
			ThisUpdate:  rec.CRL.ThisUpdate,
			Entries:     len(rec.CRL.RevokedCertificateEntries),
			ScopeJSON:   scopeJSON(rec.Scope),
			PEM:         string(crlPEM),
			Source:      rec.Source,
		}
		if rec.CRL.Number != nil {
			row.CRLNumber = sql.NullString{String: rec.CRL.Number.String(), Valid: true}
		}
		if !rec.CRL.NextUpdate.IsZero() {
			next := rec.CRL.NextUpdate
			row.NextUpdate = &next
		}
		_, err := db.NamedExec(`
			INSERT OR IGNORE INTO crls (fingerprint, issuer, crl_number, this_update, next_update, entries, scope, pem, source)
			VALUES (:fingerprint, :issuer, :crl_number, :this_update, :next_update, :entries, :scope, :pem, :source)
		`, row)
		if err != nil {
			slog.Warn("saving CRL to DB", "fingerprint", rec.Fingerprint, "error", err)
		}
	}

	// VACUUM INTO produces a clean, compact copy
	if _, err := db.Exec("VACUUM INTO ?", dbPath); err != nil {
		return fmt.Errorf("saving database to %s: %w", dbPath, err)
	}

	slog.Info("database saved", "path", dbPath)
	return nil
}
