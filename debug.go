package mockwire

import (
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/rs/zerolog"
)

// debugLoggingRequested reports whether full wire dumps were asked for
// via MOCKWIRE_DEBUG=true or DEBUG=true. When set, transports without
// an explicit logger fall back to the global zerolog logger so dumps
// are visible without extra wiring.
func debugLoggingRequested() bool {
	return os.Getenv("MOCKWIRE_DEBUG") == "true" || os.Getenv("DEBUG") == "true"
}

func dumpRequest(logger zerolog.Logger, req *http.Request) {
	if logger.GetLevel() == zerolog.Disabled {
		return
	}
	dump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		logger.Debug().Err(err).Msg("dump request failed")
		return
	}
	logger.Debug().Str("dump", string(dump)).Msg("mock http request")
}

func dumpResponse(logger zerolog.Logger, resp *http.Response) {
	if logger.GetLevel() == zerolog.Disabled {
		return
	}
	dump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		logger.Debug().Err(err).Msg("dump response failed")
		return
	}
	logger.Debug().Str("dump", string(dump)).Msg("mock http response")
}
