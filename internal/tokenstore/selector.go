package tokenstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alexjbarnes/dashboard-bff/internal/state"
)

// Durable backends selectable for the standard runtime.
const (
	BackendFile    = "file"
	BackendBolt    = "bolt"
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
)

// Backends lists every accepted backend name.
var Backends = []string{BackendFile, BackendBolt, BackendKeyring, BackendMemory}

// SelectorConfig holds what Select needs to build the store.
type SelectorConfig struct {
	// Backend picks the durable tier in the standard runtime. Serverless
	// runtimes ignore it.
	Backend        string
	FilePath       string
	DBPath         string
	EnvKey         string
	KeyringService string

	// Env is both the detection source and the Env tier medium.
	Env Environ

	// ScratchDir is where the file tier goes on writable serverless
	// platforms. Defaults to os.TempDir().
	ScratchDir string

	Logger *slog.Logger
}

// Select detects the runtime and returns a memory cache composed in front
// of the durable tier that runtime supports:
//
//	standard                 -> Backend (file by default)
//	serverless-immutable-fs  -> env
//	serverless-writable-env  -> file in ScratchDir if writable, else env
func Select(cfg SelectorConfig) (*Layered, error) {
	if cfg.Env == nil {
		cfg.Env = OSEnviron{}
	}

	runtime := DetectRuntime(cfg.Env)

	durable, err := selectDurable(runtime, cfg)
	if err != nil {
		return nil, err
	}

	store := NewLayered(durable, runtime, cfg.Logger)

	cfg.Logger.Info("token store selected",
		slog.String("runtime", runtime.String()),
		slog.String("backend", store.Backend()),
		slog.String("location", store.Location()),
	)

	return store, nil
}

func selectDurable(runtime Runtime, cfg SelectorConfig) (Durable, error) {
	switch runtime {
	case RuntimeServerlessImmutableFS:
		return NewEnvStore(cfg.Env, cfg.EnvKey), nil

	case RuntimeServerlessWritableEnv:
		dir := cfg.ScratchDir
		if dir == "" {
			dir = os.TempDir()
		}

		if dirWritable(dir) {
			return NewFileStore(filepath.Join(dir, filepath.Base(cfg.FilePath))), nil
		}

		cfg.Logger.Warn("scratch directory not writable, keeping token in environment",
			slog.String("dir", dir),
		)

		return NewEnvStore(cfg.Env, cfg.EnvKey), nil
	}

	switch cfg.Backend {
	case BackendFile, "":
		return NewFileStore(cfg.FilePath), nil
	case BackendBolt:
		st, err := state.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening token database: %w", err)
		}

		return NewBoltStore(st), nil
	case BackendKeyring:
		return NewKeyringStore(cfg.KeyringService), nil
	case BackendMemory:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported token backend %q", cfg.Backend)
	}
}
