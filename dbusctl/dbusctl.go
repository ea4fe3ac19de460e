// Package dbusctl exposes the daemon's external control requests on the
// session bus, as the desktop-native alternative to SIGUSR1/SIGUSR2:
//
//	busctl --user call org.taigrr.Dimd /org/taigrr/Dimd org.taigrr.Dimd Dim
//
// Method handlers only raise requests on the controller; all device
// work stays on the engine's event loop.
package dbusctl

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"

	"github.com/taigrr/dimd/engine"
)

const (
	// ServiceName is the well-known bus name.
	ServiceName = "org.taigrr.Dimd"
	// ObjectPath is where the control object lives.
	ObjectPath = "/org/taigrr/Dimd"
	// InterfaceName is the control interface.
	InterfaceName = "org.taigrr.Dimd"
)

const introspectXML = `
<node name="` + ObjectPath + `">
  <interface name="` + InterfaceName + `">
    <method name="Dim"/>
    <method name="Brighten"/>
    <method name="Quit"/>
  </interface>
  ` + introspect.IntrospectDataString + `
</node>
`

type service struct {
	ctrl *engine.Controller
}

func (s *service) Dim() *dbus.Error {
	log.Debug().Msg("bus: Dim")
	s.ctrl.Raise(engine.RequestDim)
	return nil
}

func (s *service) Brighten() *dbus.Error {
	log.Debug().Msg("bus: Brighten")
	s.ctrl.Raise(engine.RequestBrighten)
	return nil
}

func (s *service) Quit() *dbus.Error {
	log.Debug().Msg("bus: Quit")
	s.ctrl.Raise(engine.RequestExit)
	return nil
}

// Export claims the bus name and exports the control interface. The
// returned function releases the connection.
func Export(ctrl *engine.Controller) (func(), error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}

	svc := &service{ctrl: ctrl}
	if err := conn.Export(svc, ObjectPath, InterfaceName); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export %s: %w", InterfaceName, err)
	}
	if err := conn.Export(introspect.Introspectable(introspectXML), ObjectPath,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("bus name %s already taken", ServiceName)
	}

	log.Debug().Str("name", ServiceName).Msg("control interface on the session bus")
	return func() { conn.Close() }, nil
}
