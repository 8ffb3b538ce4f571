package audit

import "sync"

var (
	globalMu      sync.Mutex
	globalWriter  Writer = NopWriter{}
	globalEnabled bool
)

// Init installs w as the global audit writer. A nil w disables auditing
// (events are discarded). The previously installed writer, if any, is
// closed before being replaced.
func Init(w Writer) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if prev := globalWriter; prev != nil {
		_ = prev.Close()
	}

	if w == nil {
		globalWriter = NopWriter{}
		globalEnabled = false
		return nil
	}
	globalWriter = w
	globalEnabled = true
	return nil
}

// InitFile installs a FileWriter at path as the global audit writer. An
// empty path disables auditing.
func InitFile(path string) error {
	if path == "" {
		return Init(nil)
	}
	w, err := NewFileWriter(path)
	if err != nil {
		return err
	}
	return Init(w)
}

// Enabled reports whether a real (non-NopWriter) audit writer is
// installed.
func Enabled() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalEnabled
}

// Log writes event to the global audit writer.
func Log(event *Event) error {
	globalMu.Lock()
	w := globalWriter
	globalMu.Unlock()
	return w.Write(event)
}

// MustLog writes event to the global audit writer. Per this package's
// principle that audit failure is operation failure, callers that
// cannot tolerate a silent audit gap should treat its error the same
// way they would treat Log's.
func MustLog(event *Event) error {
	return Log(event)
}

// Close closes the global audit writer and disables auditing.
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()
	err := globalWriter.Close()
	globalWriter = NopWriter{}
	globalEnabled = false
	return err
}

func resultFor(success bool) Result {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}

// LogCACreated records the creation of a new CA.
func LogCACreated(basePath, subject, algorithm string, success bool) error {
	event := NewEvent(EventCACreated, resultFor(success)).
		WithObject(Object{Type: "ca", Subject: subject, Path: basePath}).
		WithContext(Context{Algorithm: algorithm})
	return Log(event)
}

// LogCALoaded records loading an existing CA certificate.
func LogCALoaded(basePath, subject string, success bool) error {
	event := NewEvent(EventCALoaded, resultFor(success)).
		WithObject(Object{Type: "ca", Subject: subject, Path: basePath})
	return Log(event)
}

// LogCARotated records a CA key/certificate rotation.
func LogCARotated(basePath, version, algorithm string, success bool) error {
	event := NewEvent(EventCARotated, resultFor(success)).
		WithObject(Object{Type: "ca", Path: basePath}).
		WithContext(Context{Algorithm: algorithm, Reason: version})
	return Log(event)
}

// LogCABootstrapped records the lazy, single-flight creation of a root
// CA, triggered by the first call that needs an issuer (an issuance with
// no explicit issuer, or Manager.RootCA).
func LogCABootstrapped(basePath, subject, algorithm string, success bool) error {
	event := NewEvent(EventCABootstrap, resultFor(success)).
		WithObject(Object{Type: "ca", Subject: subject, Path: basePath}).
		WithContext(Context{Algorithm: algorithm})
	return Log(event)
}

// LogKeyAccessed records access to a private signing key.
func LogKeyAccessed(basePath string, success bool, detail string) error {
	event := NewEvent(EventKeyAccessed, resultFor(success)).
		WithObject(Object{Type: "key", Path: basePath}).
		WithContext(Context{Reason: detail})
	return Log(event)
}

// LogAuthFailed records a credential or authentication failure.
func LogAuthFailed(basePath, reason string) error {
	event := NewEvent(EventAuthFailed, ResultFailure).
		WithObject(Object{Type: "ca", Path: basePath}).
		WithContext(Context{Reason: reason})
	return Log(event)
}

// LogCertIssued records certificate issuance.
func LogCertIssued(basePath, serial, subject, profile, sigAlg string, success bool) error {
	event := NewEvent(EventCertIssued, resultFor(success)).
		WithObject(Object{Type: "certificate", Serial: serial, Subject: subject, Path: basePath}).
		WithContext(Context{Profile: profile, Algorithm: sigAlg})
	return Log(event)
}

// LogCertRevoked records certificate revocation.
func LogCertRevoked(basePath, serial, subject, reason string, success bool) error {
	event := NewEvent(EventCertRevoked, resultFor(success)).
		WithObject(Object{Type: "certificate", Serial: serial, Subject: subject, Path: basePath}).
		WithContext(Context{Reason: reason})
	return Log(event)
}

// LogCRLGenerated records CRL generation.
func LogCRLGenerated(basePath string, revokedCount int, success bool) error {
	event := NewEvent(EventCRLGenerated, resultFor(success)).
		WithObject(Object{Type: "crl", Path: basePath}).
		WithContext(Context{Count: revokedCount})
	return Log(event)
}

// LogSignatureValidated records a successful inbound HTTP signature
// verification on a path-matched request.
func LogSignatureValidated(path, keyID string) error {
	event := NewEvent(EventSignatureValidated, ResultSuccess).
		WithObject(Object{Type: "request"}).
		WithContext(Context{Path: path, KeyID: keyID})
	return Log(event)
}

// LogSignatureRejected records a rejected inbound HTTP signature.
func LogSignatureRejected(path, reason string) error {
	event := NewEvent(EventSignatureRejected, ResultFailure).
		WithObject(Object{Type: "request"}).
		WithContext(Context{Path: path, Reason: reason})
	return Log(event)
}

// LogResponseSigned records that an outbound response was signed.
func LogResponseSigned(path, keyID string) error {
	event := NewEvent(EventResponseSigned, ResultSuccess).
		WithObject(Object{Type: "response"}).
		WithContext(Context{Path: path, KeyID: keyID})
	return Log(event)
}
