// SPDX-FileCopyrightText: 2023 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/dtn7/ucnp-go/pkg/port/selector"
	"github.com/dtn7/ucnp-go/pkg/session"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Core      coreConf
	Logging   logConf
	Link      linkConf
	Transport transportConf
	Agent     agentConf
}

// coreConf describes the Core-configuration block.
type coreConf struct {
	ReceiveCapacity int    `toml:"receive-capacity"`
	Keepalive       string
	Profiling       bool
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// linkConf describes the Link-configuration block.
type linkConf struct {
	TypecPort string `toml:"typec-port"`
}

// transportConf describes the Transport-configuration block. Empty fields
// skip their carrier probe, see the selector package.
type transportConf struct {
	MailboxDir  string `toml:"mailbox-dir"`
	RadioDevice string `toml:"radio-device"`
	QuicListen  string `toml:"quic-listen"`
	QuicPeer    string `toml:"quic-peer"`
}

// agentConf describes the Agent-configuration block.
type agentConf struct {
	Listen string
}

// parseConfig creates a Session based on the given TOML configuration.
func parseConfig(filename string) (s *session.Session, agentListen string, profiling bool, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	// Logging
	if conf.Logging.Level != "" {
		if lvl, lvlErr := log.ParseLevel(conf.Logging.Level); lvlErr != nil {
			log.WithFields(log.Fields{
				"level":    conf.Logging.Level,
				"error":    lvlErr,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.Logging.ReportCaller)

	switch conf.Logging.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}

	var keepalive time.Duration
	if conf.Core.Keepalive != "" {
		if keepalive, err = time.ParseDuration(conf.Core.Keepalive); err != nil {
			return
		}
	}

	s = session.New(session.Config{
		RecvLimit:         conf.Core.ReceiveCapacity,
		KeepaliveInterval: keepalive,
		Link: selector.Config{
			RadioDevice: conf.Transport.RadioDevice,
			QUICListen:  conf.Transport.QuicListen,
			QUICPeer:    conf.Transport.QuicPeer,
			TypeCPort:   conf.Link.TypecPort,
			MailboxDir:  conf.Transport.MailboxDir,
		},
	})

	agentListen = conf.Agent.Listen
	profiling = conf.Core.Profiling

	return
}
