// Package autostart registers the agent with the host's service manager:
// systemd on Linux, launchd on macOS and the Service Control Manager on
// Windows. Installation requires root or administrator rights.
package autostart

import (
	"bytes"
	"errors"
	"text/template"
)

// Service identifiers per service manager.
const (
	UnitName      = "devtrack-agent"
	LaunchdLabel  = "com.devtrack.agent"
	WindowsName   = "DevTrackAgent"
	windowsTitle  = "DevTrack Agent"
	windowsDetail = "Collects host telemetry and streams snapshots to the DevTrack collector"
)

// ErrUnsupported is returned on platforms without a supported service manager.
var ErrUnsupported = errors.New("autostart is not supported on this platform")

// Manager installs and removes the agent service.
type Manager interface {
	IsInstalled() (bool, error)
	Install(opts Options) error
	Uninstall() error
	ServiceName() string
}

// Options describes the installed command line.
type Options struct {
	ExecPath string
	// ConfigPath is passed as -config; empty means the agent searches the
	// standard locations.
	ConfigPath string
	// DataDir is the working directory, where the fallback snapshot and
	// relative log files are written.
	DataDir string
}

// Args returns the agent arguments for opts.
func (o Options) Args() []string {
	if o.ConfigPath == "" {
		return nil
	}
	return []string{"-config", o.ConfigPath}
}

var systemdUnit = template.Must(template.New("unit").Parse(`[Unit]
Description=DevTrack host telemetry agent
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.ExecPath}}{{range .Args}} {{.}}{{end}}
WorkingDirectory={{.DataDir}}
Restart=always
RestartSec=10
StandardOutput=journal
StandardError=journal
SyslogIdentifier=devtrack-agent
NoNewPrivileges=true
ProtectSystem=strict
ReadWritePaths={{.DataDir}}
PrivateTmp=true

[Install]
WantedBy=multi-user.target
`))

var launchdPlist = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecPath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>WorkingDirectory</key>
    <string>{{.DataDir}}</string>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>/var/log/devtrack-agent.log</string>
    <key>StandardErrorPath</key>
    <string>/var/log/devtrack-agent.log</string>
</dict>
</plist>
`))

type templateData struct {
	Options
	Label string
	Args  []string
}

func render(t *template.Template, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, templateData{Options: opts, Label: LaunchdLabel, Args: opts.Args()}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderUnit returns the systemd unit for opts.
func renderUnit(opts Options) ([]byte, error) { return render(systemdUnit, opts) }

// renderPlist returns the launchd property list for opts.
func renderPlist(opts Options) ([]byte, error) { return render(launchdPlist, opts) }
