// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RequestsTotal counts gated and ungated requests by route class and
// outcome ("admitted", or the rejecting error kind such as
// "SIGNATURE_REQUIRED" or "SIGNATURE_BAD").
var RequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total requests handled by the gateway, by route class and outcome.",
	},
	[]string{"route_class", "outcome"},
)

// VerificationDuration observes cryptographic verification latency by
// algorithm.
var VerificationDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_verification_duration_seconds",
		Help:    "Time spent in algorithm-dispatched signature verification.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"algorithm"},
)

// RegistryFetchDuration observes time spent in the registry client's
// outbound fetch (cache misses only).
var RegistryFetchDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "gateway_registry_fetch_duration_seconds",
		Help:    "Latency of outbound key-registry fetches on cache miss.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"backend", "outcome"},
)

// CacheEvents counts key-cache hits and misses.
var CacheEvents = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_key_cache_events_total",
		Help: "Key cache hits and misses.",
	},
	[]string{"result"},
)

// ReplayRejections counts nonces rejected as replays.
var ReplayRejections = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Name: "gateway_replay_rejections_total",
		Help: "Requests rejected because their nonce had already been recorded.",
	},
)

// NonceTableSize reports the current size of the replay guard's table, set
// by the guard's periodic sweep.
var NonceTableSize = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Name: "gateway_nonce_table_size",
		Help: "Current number of tracked nonces in the replay guard.",
	},
)
