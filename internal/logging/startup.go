package logging

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StartupLogger collects bot identity, configuration, resources, and
// feature flags, then emits a single structured zerolog event summarising
// the startup state.
type StartupLogger struct {
	name         string
	version      string
	botUser      string
	initDuration time.Duration

	chats     map[string]int64
	resources map[string]string
	ssmParams map[string]string
	features  map[string]bool
	config    map[string]string
}

func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:      name,
		chats:     make(map[string]int64),
		resources: make(map[string]string),
		ssmParams: make(map[string]string),
		features:  make(map[string]bool),
		config:    make(map[string]string),
	}
}

// Version sets the build version baked into the binary.
func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// BotUser records the @username reported by getMe.
func (s *StartupLogger) BotUser(name string) *StartupLogger {
	s.botUser = name
	return s
}

// Chat registers a chat the bot reads from or writes to.
func (s *StartupLogger) Chat(label string, id int64) *StartupLogger {
	s.chats[label] = id
	return s
}

// Resource registers an external resource (table, bucket, bus, database path).
func (s *StartupLogger) Resource(label, name string) *StartupLogger {
	if name != "" {
		s.resources[label] = name
	}
	return s
}

// SSMParam registers an SSM parameter path loaded at startup.
// Only the path is logged, never the value.
func (s *StartupLogger) SSMParam(label, path string) *StartupLogger {
	if path != "" {
		s.ssmParams[label] = path
	}
	return s
}

// Feature registers a boolean feature flag (e.g. "rejectionNotice").
func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config registers a non-sensitive configuration key-value pair.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	s.config[key] = value
	return s
}

func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.initDuration = d
	return s
}

// Log emits a single structured INFO log event with all collected information.
func (s *StartupLogger) Log() {
	evt := log.Info()

	identity := zerolog.Dict().
		Str("name", s.name).
		Str("goVersion", runtime.Version()).
		Str("arch", runtime.GOARCH).
		Str("logLevel", os.Getenv("APPROVAL_LOG_LEVEL"))
	if s.version != "" {
		identity = identity.Str("version", s.version)
	}
	if s.botUser != "" {
		identity = identity.Str("botUser", s.botUser)
	}
	if host, err := os.Hostname(); err == nil {
		identity = identity.Str("host", host)
	}
	evt = evt.Dict("bot", identity)

	if len(s.chats) > 0 {
		d := zerolog.Dict()
		for k, v := range s.chats {
			d = d.Str(k, strconv.FormatInt(v, 10))
		}
		evt = evt.Dict("chats", d)
	}
	if len(s.resources) > 0 {
		evt = evt.Dict("resources", dictFromMap(s.resources))
	}
	if len(s.ssmParams) > 0 {
		evt = evt.Dict("ssmParams", dictFromMap(s.ssmParams))
	}

	if len(s.features) > 0 {
		d := zerolog.Dict()
		for k, v := range s.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	if len(s.config) > 0 {
		evt = evt.Dict("config", dictFromMap(s.config))
	}

	if s.initDuration > 0 {
		evt = evt.Dur("initDuration", s.initDuration)
	}

	evt.Msg("Approval bot started")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
