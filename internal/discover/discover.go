// Package discover locates IP cameras on the local network by scanning the
// ports and stream endpoints that phone camera apps commonly expose.
package discover

import (
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Ports that IP camera apps commonly listen on. 554 is RTSP, the rest HTTP.
var DefaultPorts = []int{8080, 8081, 4747, 8888, 554}

// Endpoints that commonly serve the MJPEG stream.
var DefaultEndpoints = []string{
	"/video",
	"/videofeed",
	"/video.mjpeg",
	"/cam",
	"/stream",
	"/mjpeg",
}

const (
	// DefaultTimeout bounds each TCP dial and HTTP probe.
	DefaultTimeout = 1 * time.Second
	// DefaultWorkers bounds concurrent host probes.
	DefaultWorkers = 20
)

// Camera is one discovered device with its working stream URLs.
type Camera struct {
	Host string
	Port int
	URLs []string
}

// Config controls a scan. Zero values fall back to the defaults above.
type Config struct {
	Ports     []int
	Endpoints []string
	Timeout   time.Duration
	Workers   int
}

// Scanner probes hosts for reachable video streams.
type Scanner struct {
	config Config
	client *http.Client
}

// NewScanner creates a Scanner with the given configuration.
func NewScanner(config Config) *Scanner {
	if len(config.Ports) == 0 {
		config.Ports = DefaultPorts
	}
	if len(config.Endpoints) == 0 {
		config.Endpoints = DefaultEndpoints
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}

	return &Scanner{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// LocalSubnet returns the /24 prefix of the machine's outbound interface,
// e.g. "192.168.1". The dial never sends a packet.
func LocalSubnet() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("discover: detect local subnet: %w", err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("discover: unexpected local address %v", conn.LocalAddr())
	}

	ip := addr.IP.To4()
	if ip == nil {
		return "", fmt.Errorf("discover: non-IPv4 local address %v", addr.IP)
	}

	return fmt.Sprintf("%d.%d.%d", ip[0], ip[1], ip[2]), nil
}

// ScanSubnet probes every host of a /24 subnet ("192.168.1") on the
// configured ports and returns the cameras found, ordered by address.
func (s *Scanner) ScanSubnet(subnet string) []Camera {
	type target struct {
		host string
		port int
	}

	targets := make(chan target)
	results := make(chan Camera)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range targets {
				urls := s.ProbeHost(t.host, t.port)
				if len(urls) > 0 {
					results <- Camera{Host: t.host, Port: t.port, URLs: urls}
				}
			}
		}()
	}

	go func() {
		for i := 1; i < 255; i++ {
			host := fmt.Sprintf("%s.%d", subnet, i)
			for _, port := range s.config.Ports {
				targets <- target{host: host, port: port}
			}
		}
		close(targets)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var cameras []Camera
	for c := range results {
		cameras = append(cameras, c)
	}

	sort.Slice(cameras, func(i, j int) bool {
		if cameras[i].Host != cameras[j].Host {
			return cameras[i].Host < cameras[j].Host
		}
		return cameras[i].Port < cameras[j].Port
	})
	return cameras
}

// ProbeHost checks one host:port for working stream endpoints and returns
// their URLs. RTSP on 554 cannot be verified without speaking the protocol,
// so a reachable 554 yields its URL optimistically.
func (s *Scanner) ProbeHost(host string, port int) []string {
	if port == 554 {
		return s.probeRTSP(host, port)
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	conn, err := net.DialTimeout("tcp", addr, s.config.Timeout)
	if err != nil {
		return nil
	}
	conn.Close()

	var urls []string
	for _, endpoint := range s.config.Endpoints {
		url := fmt.Sprintf("http://%s%s", addr, endpoint)
		if s.probeEndpoint(url) {
			urls = append(urls, url)
		}
	}
	return urls
}

// probeRTSP reports a reachable RTSP port as a stream URL without speaking
// the protocol.
func (s *Scanner) probeRTSP(host string, port int) []string {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	conn, err := net.DialTimeout("tcp", addr, s.config.Timeout)
	if err != nil {
		return nil
	}
	conn.Close()

	return []string{fmt.Sprintf("rtsp://%s/stream", addr)}
}

// probeEndpoint issues a HEAD request and checks whether the response looks
// like a video stream.
func (s *Scanner) probeEndpoint(url string) bool {
	resp, err := s.client.Head(url)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	return isStreamContentType(resp.Header.Get("Content-Type"))
}

func isStreamContentType(contentType string) bool {
	for _, marker := range []string{"video", "mjpeg", "octet-stream"} {
		if strings.Contains(contentType, marker) {
			return true
		}
	}
	return false
}
