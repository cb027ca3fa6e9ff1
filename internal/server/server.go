/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package server hosts the TCP/WebSocket accept loop. Wire-level MQTT
// decoding, the authentication handshake, and subscription matching are
// all external collaborators the spec places out of scope (spec §1);
// this package's job ends at handing each accepted connection to the
// session layer once those collaborators have identified it.
package server

import (
	"context"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yunqi/lighthouse-broker/config"
	"github.com/yunqi/lighthouse-broker/internal/goroutine"
	"github.com/yunqi/lighthouse-broker/internal/queue"
	"github.com/yunqi/lighthouse-broker/internal/session"
	"github.com/yunqi/lighthouse-broker/internal/xlog"
	"github.com/yunqi/lighthouse-broker/internal/xtrace"
)

type (
	Server interface {
		Stop(ctx context.Context) error
		Run() error
	}
	Option func(server *Options)

	Options struct {
		tcpListen       string
		websocketListen string
		mqtt            *config.Mqtt
	}
	server struct {
		tcpListen         string
		websocketListen   string
		tcpListener       net.Listener // tcp listener
		websocketUpgrader websocket.Upgrader
		sessions          *session.Manager
		timerService      queue.TimerService
		log               *xlog.Log
		tracer            trace.Tracer
	}
)

func WithTcpListen(tcpListen string) Option {
	return func(opts *Options) {
		opts.tcpListen = tcpListen
	}
}

// WithMqttConfig supplies the session-expiry/queue-size knobs the session
// manager enforces (config.Mqtt.MaxQueueMessages, QueueQos0Msg, ...).
func WithMqttConfig(mqtt *config.Mqtt) Option {
	return func(opts *Options) {
		opts.mqtt = mqtt
	}
}

func WithWebsocketListen(websocketListen string) Option {
	return func(opts *Options) {
		opts.websocketListen = websocketListen
	}
}

func NewServer(opts ...Option) *server {
	options := loadServerOptions(opts...)
	s := &server{}
	s.init(options)
	return s
}

func loadServerOptions(opts ...Option) *Options {
	options := new(Options)
	for _, opt := range opts {
		opt(options)
	}
	if options.tcpListen == "" {
		options.tcpListen = ":1883"
	}
	if options.mqtt == nil {
		options.mqtt = &config.Mqtt{}
	}
	return options
}

func (s *server) init(opts *Options) {
	s.tcpListen = opts.tcpListen
	s.websocketListen = opts.websocketListen
	s.log = xlog.LoggerModule("server")
	s.tracer = otel.GetTracerProvider().Tracer(xtrace.Name)

	s.timerService = queue.NewTimerService()
	s.sessions = session.NewManager(opts.mqtt, s.timerService)

	ln, err := net.Listen("tcp", s.tcpListen)
	if err != nil {
		s.log.Panic("start tcp error", zap.String("tcp", s.tcpListen), zap.Error(err))
	}
	s.log.Info("start tcp", zap.String("tcp", s.tcpListen))
	s.tcpListener = ln
}

// Sessions exposes the session manager so a connection's authentication
// handshake (out of scope here) can hand off to it once a client
// identity and clean_start flag are known.
func (s *server) Sessions() *session.Manager {
	return s.sessions
}

func (s *server) ServeTCP() {
	defer func() {
		if err := s.tcpListener.Close(); err != nil {
			s.log.Error("tcpListener close", zap.Error(err))
		}
	}()

	var tempDelay time.Duration
	for {
		accept, err := s.tcpListener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			return
		}

		goroutine.Go(func() {
			s.handleConn(accept)
		})
	}
}

// handleConn is the integration point between the transport accept loop
// and the session layer: once the (out-of-scope) handshake has
// identified the client and its clean_start flag, the session record's
// queue would be drained against an endpoint wrapping this connection via
// s.Sessions().TakeOver(clientID, cleanStart).Reconnect(ctx, endpoint).
//
// Full MQTT wire decoding of that handshake is explicitly out of scope
// (spec §1); conn is closed immediately after being accepted to keep this
// package honest about what it actually implements.
func (s *server) handleConn(conn net.Conn) {
	_, span := s.tracer.Start(context.Background(), "server.handleConn")
	defer span.End()

	defer func() {
		if err := conn.Close(); err != nil {
			s.log.Error("conn close", zap.Error(err))
		}
	}()
}

func (s *server) Run() error {
	s.ServeTCP()
	return nil
}

func (s *server) Stop(ctx context.Context) error {
	return s.tcpListener.Close()
}
