package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ IssuanceService     = (*Service)(nil)
	_ AttestationRegistry = (*AttestationSourceRegistry)(nil)

	_ AttestationSource        = AttestationSourceFunc(nil)
	_ AttestationSourceFactory = AttestationSourceFactoryFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
