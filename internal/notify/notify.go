// Copyright 2022 bytetrade
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

package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/nats-io/nats.go"

	"applet/internal/conf"
	"applet/internal/models"
)

const EventPublished = "published"

// PackageEvent is the message sent for every package accepted by the repository.
type PackageEvent struct {
	Event          string `json:"event"`
	ID             string `json:"id"`
	Version        string `json:"version"`
	Author         string `json:"author,omitempty"`
	PublicKeyToken string `json:"publicKeyToken,omitempty"`
	Solution       bool   `json:"solution,omitempty"`
	Digest         string `json:"digest"`
	Size           int64  `json:"size"`
	TimeStamp      int64  `json:"ts"`
}

func NewPackageEvent(event string, e *models.PackageEntry) PackageEvent {
	return PackageEvent{
		Event:          event,
		ID:             e.ID,
		Version:        e.Version,
		Author:         e.Author,
		PublicKeyToken: e.PublicKeyToken,
		Solution:       e.Solution,
		Digest:         e.Digest,
		Size:           e.Size,
		TimeStamp:      e.TimeStamp,
	}
}

// Sender publishes package events to a NATS subject.
type Sender struct {
	conn    *nats.Conn
	subject string
	enabled bool
}

// NewSender connects to cfg.URL. An empty URL returns a disabled sender.
func NewSender(cfg conf.NotifyConfig) (*Sender, error) {
	if cfg.URL == "" {
		glog.V(2).Info("no notify url configured, publish events disabled")
		return &Sender{enabled: false}, nil
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(10),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			glog.Warningf("nats disconnected err:%v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			glog.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", cfg.URL, err)
	}
	glog.Infof("publish events go to %s subject %s", conn.ConnectedUrl(), cfg.Subject)

	return &Sender{
		conn:    conn,
		subject: cfg.Subject,
		enabled: true,
	}, nil
}

func (s *Sender) PackagePublished(e *models.PackageEntry) error {
	if !s.enabled {
		return nil
	}
	if s.conn == nil {
		return fmt.Errorf("nats connection is not initialized")
	}

	data, err := json.Marshal(NewPackageEvent(EventPublished, e))
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", s.subject, err)
	}
	glog.V(4).Infof("sent %s event for %s %s", EventPublished, e.ID, e.Version)
	return nil
}

func (s *Sender) IsConnected() bool {
	if !s.enabled || s.conn == nil {
		return false
	}
	return s.conn.IsConnected()
}

func (s *Sender) Close() {
	if s.conn != nil && s.enabled {
		s.conn.Close()
	}
}
