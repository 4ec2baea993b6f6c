package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"holdtalk/internal/engine"
	"holdtalk/internal/logging"
)

const (
	envPrefix    = "HOLDTALK"
	settingsName = "holdtalk.env"

	// Keys of the persisted settings file.
	settingModel      = "MODEL"
	settingTriggerKey = "TRIGGER_KEY"
)

// Config stores runtime configuration. It is built once at startup and not
// modified afterwards.
type Config struct {
	Model       string         `mapstructure:"model" validate:"required,ggml_model"`
	TriggerKey  string         `mapstructure:"trigger_key" validate:"required"`
	Engine      EngineConfig   `mapstructure:"engine"`
	Audio       AudioConfig    `mapstructure:"audio"`
	Session     SessionConfig  `mapstructure:"session"`
	Output      OutputConfig   `mapstructure:"output"`
	Rules       RulesConfig    `mapstructure:"rules"`
	Log         logging.Config `mapstructure:"log"`
	MetricsAddr string         `mapstructure:"metrics_addr"`

	// SettingsPath is the persisted settings file; Save requests a write of
	// the effective model and trigger key to it.
	SettingsPath string `mapstructure:"-"`
	Save         bool   `mapstructure:"-"`
}

type EngineConfig struct {
	Binary    string        `mapstructure:"binary"`
	ModelsDir string        `mapstructure:"models_dir" validate:"required"`
	Language  string        `mapstructure:"language" validate:"required"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type AudioConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=portaudio ffmpeg"`
	SampleRate    int    `mapstructure:"sample_rate" validate:"min=8000,max=48000"`
	BatchFrames   int    `mapstructure:"batch_frames" validate:"min=64,max=16384"`
	ArtifactPath  string `mapstructure:"artifact" validate:"required"`
	FFMPEGCommand string `mapstructure:"ffmpeg_command"`
	InputFormat   string `mapstructure:"input_format"`
	InputDevice   string `mapstructure:"input_device"`
}

type SessionConfig struct {
	MinDuration time.Duration `mapstructure:"min_duration" validate:"gte=0"`
	MaxDuration time.Duration `mapstructure:"max_duration" validate:"omitempty,gtefield=MinDuration"`
}

type OutputConfig struct {
	Paste      bool          `mapstructure:"paste"`
	PasteDelay time.Duration `mapstructure:"paste_delay" validate:"gte=0"`
	Cues       bool          `mapstructure:"cues"`
	Notify     bool          `mapstructure:"notify"`
}

type RulesConfig struct {
	Path           string `mapstructure:"path"`
	IterationLimit int    `mapstructure:"iteration_limit" validate:"min=1"`
}

// MinFrames is the shortest accepted session in samples.
func (c Config) MinFrames() int {
	return durationFrames(c.Session.MinDuration, c.Audio.SampleRate)
}

// MaxFrames is the longest session in samples; zero means unbounded.
func (c Config) MaxFrames() int {
	return durationFrames(c.Session.MaxDuration, c.Audio.SampleRate)
}

func durationFrames(d time.Duration, sampleRate int) int {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(d.Seconds() * float64(sampleRate))
}

type flagBinding struct {
	key  string
	flag string
}

var bindings = []flagBinding{
	{"model", "model"},
	{"trigger_key", "key"},
	{"engine.binary", "engine-bin"},
	{"engine.models_dir", "models-dir"},
	{"engine.language", "language"},
	{"engine.timeout", "engine-timeout"},
	{"audio.backend", "backend"},
	{"audio.sample_rate", "sample-rate"},
	{"audio.batch_frames", "batch-frames"},
	{"audio.artifact", "artifact"},
	{"audio.ffmpeg_command", "ffmpeg"},
	{"audio.input_format", "input-format"},
	{"audio.input_device", "input-device"},
	{"session.min_duration", "min-duration"},
	{"session.max_duration", "max-duration"},
	{"output.paste", "paste"},
	{"output.paste_delay", "paste-delay"},
	{"output.cues", "cues"},
	{"output.notify", "notify"},
	{"rules.path", "rules"},
	{"rules.iteration_limit", "rule-iteration-limit"},
	{"log.level", "log-level"},
	{"log.format", "log-format"},
	{"log.no_color", "no-color"},
	{"metrics_addr", "metrics-addr"},
}

// Load resolves configuration from, in order of precedence, command-line
// flags, HOLDTALK_* environment variables, the persisted settings file and
// built-in defaults. pflag.ErrHelp is returned unchanged for --help.
func Load(args []string) (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "holdtalk")

	fs := newFlagSet()
	settingsPath := fs.String("settings", filepath.Join(configDir, settingsName), "persisted settings file")
	save := fs.Bool("save", false, "persist --model and --key to the settings file")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, home, configDir)

	persisted, err := readSettings(*settingsPath)
	if err != nil {
		return Config{}, err
	}
	if model := strings.TrimSpace(persisted[settingModel]); model != "" {
		v.SetDefault("model", model)
	}
	if key := strings.TrimSpace(persisted[settingTriggerKey]); key != "" {
		v.SetDefault("trigger_key", key)
	}

	for _, b := range bindings {
		if err := v.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", b.flag, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SettingsPath = *settingsPath
	cfg.Save = *save
	normalize(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("holdtalk", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringP("model", "m", "", "whisper model: "+strings.Join(engine.KnownModels, ", "))
	fs.StringP("key", "k", "", "trigger key to hold while speaking (e.g. rctrl, f9, ralt)")
	fs.String("engine-bin", "", "whisper.cpp binary (default: search PATH and common install dirs)")
	fs.String("models-dir", "", "directory holding ggml-<model>.bin files")
	fs.StringP("language", "l", "", "spoken language, or auto")
	fs.Duration("engine-timeout", 0, "abort transcription after this long (0 disables)")
	fs.String("backend", "", "capture backend: portaudio or ffmpeg")
	fs.Int("sample-rate", 0, "capture sample rate in Hz")
	fs.Int("batch-frames", 0, "frames per capture batch")
	fs.String("artifact", "", "path of the temporary WAV file")
	fs.String("ffmpeg", "", "ffmpeg command for the ffmpeg backend")
	fs.String("input-format", "", "ffmpeg input format (pulse, alsa, avfoundation)")
	fs.String("input-device", "", "ffmpeg input device")
	fs.Duration("min-duration", 0, "discard recordings shorter than this")
	fs.Duration("max-duration", 0, "stop growing recordings after this long (0 disables the limit)")
	fs.String("rules", "", "transcript substitution rules file")
	fs.Int("rule-iteration-limit", 0, "maximum rewrite passes per transcript")
	fs.Bool("paste", true, "send the paste shortcut after copying")
	fs.Duration("paste-delay", 0, "wait between clipboard write and paste")
	fs.Bool("cues", true, "play audible cues")
	fs.Bool("notify", false, "show a desktop notification per transcript")
	fs.String("log-level", "", "log level: trace, debug, info, warn, error")
	fs.String("log-format", "", "log format: console or json")
	fs.Bool("no-color", false, "disable colored console logs")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	return fs
}

func setDefaults(v *viper.Viper, home string, configDir string) {
	v.SetDefault("model", "base")
	v.SetDefault("trigger_key", "rctrl")

	v.SetDefault("engine.binary", "")
	v.SetDefault("engine.models_dir", filepath.Join(home, "models"))
	v.SetDefault("engine.language", "auto")
	v.SetDefault("engine.timeout", time.Duration(0))

	v.SetDefault("audio.backend", "portaudio")
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.batch_frames", 512)
	v.SetDefault("audio.artifact", filepath.Join(os.TempDir(), "voice_prompt.wav"))
	v.SetDefault("audio.ffmpeg_command", "ffmpeg")
	v.SetDefault("audio.input_format", "pulse")
	v.SetDefault("audio.input_device", "default")

	v.SetDefault("session.min_duration", 300*time.Millisecond)
	v.SetDefault("session.max_duration", 5*time.Minute)

	v.SetDefault("output.paste", true)
	v.SetDefault("output.paste_delay", 80*time.Millisecond)
	v.SetDefault("output.cues", true)
	v.SetDefault("output.notify", false)

	v.SetDefault("rules.path", firstExisting(
		filepath.Join(configDir, "substitutions.rules"),
		filepath.Join(home, ".config", "hypr", "whisper-substitutions.rules"),
	))
	v.SetDefault("rules.iteration_limit", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.no_color", false)

	v.SetDefault("metrics_addr", "")
}

func normalize(cfg *Config) {
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.TriggerKey = strings.ToLower(strings.TrimSpace(cfg.TriggerKey))
	cfg.Audio.Backend = strings.ToLower(strings.TrimSpace(cfg.Audio.Backend))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Engine.ModelsDir = expandHome(cfg.Engine.ModelsDir)
	cfg.Engine.Binary = expandHome(cfg.Engine.Binary)
	cfg.Rules.Path = expandHome(cfg.Rules.Path)
}

// Save persists the model and trigger key for future runs.
func Save(cfg Config) error {
	if cfg.SettingsPath == "" {
		return errors.New("settings path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SettingsPath), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	values := map[string]string{
		settingModel:      cfg.Model,
		settingTriggerKey: cfg.TriggerKey,
	}
	if err := godotenv.Write(values, cfg.SettingsPath); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func readSettings(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	return values, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("ggml_model", func(fl validator.FieldLevel) bool {
		return engine.IsKnownModel(fl.Field().String())
	})
	return v
}

// Validate checks field constraints and reports every violation at once.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldPath(fe)+": "+formatValidationError(fe))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

// fieldPath turns "Config.audio.backend" into "audio.backend".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must not be negative"
	case "gtefield":
		return "must not be shorter than " + fe.Param()
	case "ggml_model":
		return fmt.Sprintf("unknown model %q (choose one of %s)", fe.Value(), strings.Join(engine.KnownModels, ", "))
	default:
		return "is invalid"
	}
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
