package tokenstore

// Runtime is the deployment environment kind, detected once at start-up.
type Runtime int

const (
	// RuntimeStandard is a long-running process with a persistent filesystem.
	RuntimeStandard Runtime = iota
	// RuntimeServerlessImmutableFS is a serverless platform with a read-only
	// filesystem but a mutable process environment (Vercel).
	RuntimeServerlessImmutableFS
	// RuntimeServerlessWritableEnv is a serverless platform where a scratch
	// directory may be writable (Netlify, AWS Lambda).
	RuntimeServerlessWritableEnv
)

func (r Runtime) String() string {
	switch r {
	case RuntimeServerlessImmutableFS:
		return "serverless-immutable-fs"
	case RuntimeServerlessWritableEnv:
		return "serverless-writable-env"
	default:
		return "standard"
	}
}

// DetectRuntime inspects platform marker variables.
func DetectRuntime(env Environ) Runtime {
	if isSet(env, "VERCEL") {
		return RuntimeServerlessImmutableFS
	}

	if isSet(env, "NETLIFY") || isSet(env, "AWS_LAMBDA_FUNCTION_NAME") {
		return RuntimeServerlessWritableEnv
	}

	return RuntimeStandard
}

func isSet(env Environ, key string) bool {
	v, ok := env.Lookup(key)
	return ok && v != ""
}
