package defs

/// Err_t is a kernel error number. Calls return error numbers negated;
/// zero means success.
type Err_t int

/// Error numbers returned by this kernel core.
const (
	EIO       Err_t = 5   /// hardware reported a fault
	ENOMEM    Err_t = 12  /// out of memory
	ENODEV    Err_t = 19  /// no such device
	EINVAL    Err_t = 22  /// bad argument
	ETIMEDOUT Err_t = 110 /// bounded wait loop expired
)

var errstr = map[Err_t]string{
	EIO:       "input/output error",
	ENOMEM:    "out of memory",
	ENODEV:    "no such device",
	EINVAL:    "invalid argument",
	ETIMEDOUT: "timed out",
}

/// Errstr returns a printable description of an error number. It accepts
/// the negated form that calls actually return.
func Errstr(e Err_t) string {
	if e < 0 {
		e = -e
	}
	if s, ok := errstr[e]; ok {
		return s
	}
	return "unknown error"
}
