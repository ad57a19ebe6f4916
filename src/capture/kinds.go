package capture

// Severity codes reported by error-handler style hosts. The values follow the
// widely used E_* bit flags so that hosts forwarding over HTTP keep their codes.
const (
	CodeError            = 1
	CodeWarning          = 2
	CodeParse            = 4
	CodeNotice           = 8
	CodeCoreError        = 16
	CodeCoreWarning      = 32
	CodeCompileError     = 64
	CodeCompileWarning   = 128
	CodeUserError        = 256
	CodeUserWarning      = 512
	CodeUserNotice       = 1024
	CodeRecoverableError = 4096
	CodeDeprecated       = 8192
	CodeUserDeprecated   = 16384
	CodeAll              = 32767
)

// UnknownKind is the kind of a code missing from ErrorKinds.
const UnknownKind = "UNKNOWN_ERROR"

// ErrorKinds maps severity codes to kind names.
var ErrorKinds = map[int]string{
	CodeError:            "E_ERROR",
	CodeWarning:          "E_WARNING",
	CodeParse:            "E_PARSE",
	CodeNotice:           "E_NOTICE",
	CodeCoreError:        "E_CORE_ERROR",
	CodeCoreWarning:      "E_CORE_WARNING",
	CodeCompileError:     "E_COMPILE_ERROR",
	CodeCompileWarning:   "E_COMPILE_WARNING",
	CodeUserError:        "E_USER_ERROR",
	CodeUserWarning:      "E_USER_WARNING",
	CodeUserNotice:       "E_USER_NOTICE",
	CodeRecoverableError: "E_RECOVERABLE_ERROR",
	CodeDeprecated:       "E_DEPRECATED",
	CodeUserDeprecated:   "E_USER_DEPRECATED",
	CodeAll:              "E_ALL",
}

// KindForCode returns the kind name for code, or UnknownKind.
func KindForCode(code int) string {
	if kind, ok := ErrorKinds[code]; ok {
		return kind
	}
	return UnknownKind
}
