package peer

import (
	"github.com/danmuck/turnsync/internal/protocol/frame"
	"github.com/danmuck/turnsync/internal/protocol/session"
	"github.com/danmuck/turnsync/internal/server"
	"github.com/danmuck/turnsync/internal/transport"
)

// EchoServiceConfig wires the server-side process.
type EchoServiceConfig struct {
	Transport transport.Config
	Frame     frame.Config
	Session   session.EchoConfig
	// AdminEnabled starts the admin HTTP server next to the session.
	AdminEnabled bool
	Admin        server.Config
}

// SenderServiceConfig wires the client-side process.
type SenderServiceConfig struct {
	Transport transport.Config
	Frame     frame.Config
	Session   session.SenderConfig
	// Seed feeds the particle generator; 0 picks a time-based seed.
	Seed int64
	// DumpDir receives client_in.log and client_out.log when set.
	DumpDir      string
	AdminEnabled bool
	Admin        server.Config
}

func DefaultEchoServiceConfig() EchoServiceConfig {
	admin := server.DefaultConfig()
	admin.Peer = string(session.RoleEcho)
	return EchoServiceConfig{
		Transport:    transport.DefaultConfig(),
		Frame:        frame.DefaultConfig(),
		Session:      session.DefaultEchoConfig(),
		AdminEnabled: true,
		Admin:        admin,
	}
}

func DefaultSenderServiceConfig() SenderServiceConfig {
	admin := server.DefaultConfig()
	admin.Peer = string(session.RoleSender)
	admin.ListenAddr = "127.0.0.1:7356"
	return SenderServiceConfig{
		Transport: transport.DefaultConfig(),
		Frame:     frame.DefaultConfig(),
		Session:   session.DefaultSenderConfig(),
		Admin:     admin,
	}
}
