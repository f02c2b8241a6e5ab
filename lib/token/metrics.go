package token

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "formguard_tokens_issued",
	Help: "The total number of submission tokens issued",
}, []string{"format"})
