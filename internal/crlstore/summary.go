package crlstore

import "time"

// ScanSummaryInput holds parameters for ScanSummary.
type ScanSummaryInput struct {
	At time.Time // staleness reference; zero means now
}

// ScanSummary holds aggregate counts from a scan operation.
type ScanSummary struct {
	Roots          int `json:"roots"`
	Intermediates  int `json:"intermediates"`
	Leaves         int `json:"leaves"`
	CRLs           int `json:"crls"`
	StaleCRLs      int `json:"stale_crls"`
	RevokedEntries int `json:"revoked_entries"`
	Good           int `json:"good"`
	Revoked        int `json:"revoked"`
	Undetermined   int `json:"undetermined"`
}
