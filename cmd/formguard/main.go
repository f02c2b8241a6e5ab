package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/internal"
	libformguard "github.com/TecharoHQ/formguard/lib"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	basePrefix         = flag.String("base-prefix", "", "base prefix (root URL) the application is served under e.g. /comments")
	bind               = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork        = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	configFname        = flag.String("config-fname", "", "full path to formguard config file (defaults to a sensible built-in config)")
	metricsBind        = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	socketMode         = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	secretKey          = flag.String("secret-key", "", "secret key used to sign and encrypt submission tokens")
	secretKeyFile      = flag.String("secret-key-file", "", "file name containing value for secret-key")
	slogLevel          = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	healthcheck        = flag.Bool("healthcheck", false, "check that a formguard listening on -bind is healthy, then exit")
	useRemoteAddress   = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running formguard on bare metal")
	versionFlag        = flag.Bool("version", false, "print formguard version")
)

// doHealthCheck asks a running formguard whether it is serving, for
// container HEALTHCHECK directives.
func doHealthCheck(network, address string) error {
	if network == "" {
		network, address = parseBindNetFromAddr(address)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	base := "http://" + address

	switch {
	case network == "unix":
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", address)
			},
		}
		base = "http://formguard"
	case strings.HasPrefix(address, ":"):
		base = "http://localhost" + address
	}

	resp, err := client.Get(base + formguard.BasePrefix + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to reach formguard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// parseBindNetFromAddr determine bind network and address based on the given network and address.
func parseBindNetFromAddr(address string) (string, string) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to parse bind URL: %w", err))
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path
	case "tcp", "http", "https":
		return "tcp", bindUri.Host
	default:
		log.Fatal(fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address))
	}
	return "", address
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	if network == "" {
		// keep compatibility
		network, address = parseBindNetFromAddr(address)
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :4259
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	// additional permission handling for unix sockets
	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		err = os.Chmod(address, os.FileMode(mode))
		if err != nil {
			err := listener.Close()
			if err != nil {
				log.Printf("failed to close listener: %v", err)
			}
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("formguard", formguard.Version)
		return
	}

	internal.InitSlog(*slogLevel)

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}
	formguard.BasePrefix = *basePrefix

	if *healthcheck {
		if err := doHealthCheck(*bindNetwork, *bind); err != nil {
			log.Fatal(err)
		}
		return
	}

	secret, err := internal.LoadSecret(*secretKey, *secretKeyFile)
	if err != nil {
		log.Fatalf("[misconfiguration] %v", err)
	}

	cfg, err := libformguard.LoadConfigOrDefault(*configFname)
	if err != nil {
		log.Fatalf("can't load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := libformguard.New(ctx, libformguard.Options{
		Config:     cfg,
		Secret:     secret,
		BasePrefix: *basePrefix,
	})
	if err != nil {
		log.Fatalf("can't construct libformguard.Server: %v", err)
	}

	var h http.Handler = s
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(internal.NewTrustedProxies(cfg.TrustedProxies), h)

	var wg sync.WaitGroup

	if *metricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle(formguard.BasePrefix+"/metrics", promhttp.Handler())

		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, "metrics", mux, *metricsBindNetwork, *metricsBind)
		}()
	}

	slog.Info(
		"starting",
		"version", formguard.Version,
		"format", cfg.Format,
		"min_wait", cfg.MinWait,
		"max_wait", cfg.MaxWait,
		"store", cfg.Store.Backend,
		"trusted_proxies", len(cfg.TrustedProxies),
		"use-remote-address", *useRemoteAddress,
		"base-prefix", *basePrefix,
	)

	serve(ctx, "comments", h, *bindNetwork, *bind)
	wg.Wait()
}

// serve runs an HTTP server on the given listener until ctx is done, then
// gives in-flight requests five seconds to finish.
func serve(ctx context.Context, name string, h http.Handler, network, address string) {
	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerURL := setupListener(network, address)
	slog.Info("listening", "server", name, "url", listenerURL)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			slog.Error("cannot shut down", "server", name, "err", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
