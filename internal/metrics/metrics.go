package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan result labels.
const (
	ScanRecorded  = "recorded"
	ScanInvalid   = "invalid_token"
	ScanExpired   = "token_expired"
	ScanDuplicate = "already_recorded"
	ScanError     = "error"
)

var (
	// TokensIssued counts QR tokens issued (rotations included).
	TokensIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_qr_tokens_issued_total",
		Help: "QR tokens issued, including rotations.",
	})

	// Scans counts attendance scan attempts by outcome.
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classtrack_scans_total",
		Help: "Attendance scan attempts by outcome.",
	}, []string{"result"})

	// UsersProvisioned counts admin account creations.
	UsersProvisioned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_users_provisioned_total",
		Help: "Accounts created through the admin provisioning path.",
	})

	// UsersDeleted counts completed user deletion cascades.
	UsersDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_users_deleted_total",
		Help: "User deletion cascades that ran to completion.",
	})
)
