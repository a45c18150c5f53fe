package provisioning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	credentialsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crooked_keys_credentials_issued_total",
		Help: "Total number of VPN credentials issued",
	})

	credentialsRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "crooked_keys_credentials_revoked_total",
		Help: "Total number of VPN credentials revoked",
	})

	issueFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crooked_keys_issue_failures_total",
		Help: "Total number of refused or failed issuance requests",
	}, []string{"reason"})

	addressesInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crooked_keys_pool_addresses_in_use",
		Help: "Number of pool addresses held by active credentials",
	})
)
