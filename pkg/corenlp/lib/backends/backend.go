// Copyright 2025 Antfly, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package backends describes the remote annotation servers a client can
// schedule requests on.
package backends

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Protocols supported by a Backend.
const (
	ProtocolHTTP  = "http"
	ProtocolHTTPS = "https"
)

// ErrEmptyHost is returned when a backend is configured without a host.
var ErrEmptyHost = errors.New("backend host is empty")

// Backend is the connection information for one remote annotation server.
// A Backend stands for one worker slot on the server, so a pool may hold
// several equal backends. Backends compare with Equal; the type is
// deliberately not comparable and cannot be used as a map key.
type Backend struct {
	Protocol string
	Host     string
	Port     int

	_ [0]func()
}

// New builds a backend from a host that may carry an http:// or https://
// scheme prefix. A host without a scheme uses https.
func New(host string, port int) (Backend, error) {
	protocol := ProtocolHTTPS
	switch {
	case strings.HasPrefix(host, "http://"):
		protocol = ProtocolHTTP
		host = strings.TrimPrefix(host, "http://")
	case strings.HasPrefix(host, "https://"):
		host = strings.TrimPrefix(host, "https://")
	}
	if host == "" {
		return Backend{}, ErrEmptyHost
	}
	return Backend{Protocol: protocol, Host: host, Port: port}, nil
}

// Equal reports whether b and o point at the same endpoint.
func (b Backend) Equal(o Backend) bool {
	return b.Protocol == o.Protocol && b.Host == o.Host && b.Port == o.Port
}

// String returns proto://host:port.
func (b Backend) String() string {
	return fmt.Sprintf("%s://%s:%d", b.Protocol, b.Host, b.Port)
}

// URL returns the address of path on the backend with the given raw
// (already encoded) query.
func (b Backend) URL(path, rawQuery string) *url.URL {
	return &url.URL{
		Scheme:   b.Protocol,
		Host:     net.JoinHostPort(b.Host, strconv.Itoa(b.Port)),
		Path:     path,
		RawQuery: rawQuery,
	}
}

// Pool is an ordered list of backends.
type Pool []Backend

// NewPool builds n equal backends for host:port and shuffles them with rng.
// A nil rng uses the global source. n below 1 is treated as 1.
func NewPool(host string, port, n int, rng *rand.Rand) (Pool, error) {
	if n < 1 {
		n = 1
	}
	b, err := New(host, port)
	if err != nil {
		return nil, err
	}
	pool := make(Pool, n)
	for i := range pool {
		pool[i] = b
	}
	pool.Shuffle(rng)
	return pool, nil
}

// Shuffle permutes the pool in place.
func (p Pool) Shuffle(rng *rand.Rand) {
	swap := func(i, j int) { p[i], p[j] = p[j], p[i] }
	if rng == nil {
		rand.Shuffle(len(p), swap)
		return
	}
	rng.Shuffle(len(p), swap)
}

// Primary returns the backend every request is sent to.
func (p Pool) Primary() (Backend, bool) {
	if len(p) == 0 {
		return Backend{}, false
	}
	return p[0], true
}
