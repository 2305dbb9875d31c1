package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ Logger            = glog.Nop()
	_ LoggerProvider    = glog.ProviderFromLogger(glog.Nop())
	_ MetricsRecorder   = NopMetricsRecorder{}
	_ Signer            = BearerTokenSigner{}
	_ AccessTokenSource = (*TokenManager)(nil)
	_ RawConfigLoader   = StaticRawConfigLoader{}
	_ ConfigProvider    = (*CfgxConfigProvider)(nil)
	_ OptionsResolver   = GoOptionsResolver{}
)
