package query

import (
	"bytes"
	"encoding/binary"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	queryTypeHandshake   = 0x09
	queryTypeInformation = 0x00

	// tokenLifetime is the time a challenge token stays valid after the
	// handshake it was issued in.
	tokenLifetime = 30 * time.Second
	// tokenPurgeSize is the amount of issued tokens above which expired
	// tokens are purged when a new one is issued.
	tokenPurgeSize = 1024
)

var (
	querySplitNum  = [...]byte{'S', 'P', 'L', 'I', 'T', 'N', 'U', 'M', 0x00}
	queryPlayerKey = [...]byte{0x00, 0x01, 'p', 'l', 'a', 'y', 'e', 'r', '_', 0x00, 0x00}
	queryVersion   = [...]byte{0xfe, 0xfd}
)

// Listener answers query requests received on a UDP socket.
type Listener struct {
	conn net.PacketConn
	log  *slog.Logger
	host string
	port int

	provider atomic.Pointer[ProviderFunc]
	last     atomic.Pointer[Data]

	mu     sync.Mutex
	tokens map[string]token
	rng    *rand.Rand
}

type token struct {
	value  int32
	expiry time.Time
}

// Listen opens a UDP socket on address and returns a Listener answering
// requests with the Data of provider. Requests are only answered once Serve
// is called.
func Listen(address string, provider ProviderFunc, log *slog.Logger) (*Listener, error) {
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return nil, err
	}
	return newListener(conn, provider, log), nil
}

func newListener(conn net.PacketConn, provider ProviderFunc, log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	host, port := "", 0
	if local, ok := conn.LocalAddr().(*net.UDPAddr); ok && local != nil {
		if local.IP != nil && !local.IP.IsUnspecified() {
			host = local.IP.String()
		}
		port = local.Port
	}
	l := &Listener{conn: conn, log: log.With("subsystem", "query"), host: canonicalHost(host), port: port}
	l.SetProvider(provider)
	return l
}

// SetProvider replaces the ProviderFunc that supplies query responses. Passing
// nil unregisters the current provider, after which responses fall back to
// the latest snapshot produced or default values.
func (l *Listener) SetProvider(fn ProviderFunc) {
	if fn == nil {
		l.provider.Store(nil)
		return
	}
	l.provider.Store(&fn)
}

// Addr returns the address the Listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Close closes the socket of the Listener, making Serve return.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Serve reads requests from the socket and answers them until the Listener is
// closed, in which case nil is returned. Datagrams that are not query requests
// are ignored.
func (l *Listener) Serve() error {
	buf := make([]byte, 2048)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if !l.handleQuery(buf[:n], addr) {
			l.log.Debug("Ignored datagram.", "raddr", addr.String(), "len", n)
		}
	}
}

// collectData retrieves the latest state, normalises it and updates the cached
// snapshot. When no provider is registered the latest cached snapshot is used
// instead. If no snapshot exists yet, defaults are returned.
func (l *Listener) collectData() Data {
	ptr := l.provider.Load()
	if ptr == nil {
		if snap := l.last.Load(); snap != nil {
			return cloneData(*snap)
		}
		return defaultData(l.host, l.port)
	}
	data := (*ptr)(l.host, l.port)
	data.HostIP, data.HostPort = l.host, l.port
	data.applyDefaults()
	cp := cloneData(data)
	l.last.Store(&cp)
	return data
}

// handleQuery recognises and processes query requests. It returns false for
// datagrams that are not query requests.
func (l *Listener) handleQuery(b []byte, addr net.Addr) bool {
	if len(b) < 7 || b[0] != queryVersion[0] || b[1] != queryVersion[1] {
		return false
	}
	reqType := b[2]
	sequence := int32(binary.BigEndian.Uint32(b[3:7]))
	switch reqType {
	case queryTypeHandshake:
		token := l.newToken(addr.String())
		l.writeHandshake(addr, sequence, token)
		return true
	case queryTypeInformation:
		if len(b) <= 7 {
			return true
		}
		token, ok := parseTokenValue(b[7:])
		if !ok {
			return true
		}
		if !l.validateToken(addr.String(), token) {
			return true
		}
		l.writeInfo(addr, sequence)
		return true
	default:
		return false
	}
}

// newToken issues a temporary token for the provided address. The token is
// required by the query protocol to guard against amplification attacks.
func (l *Listener) newToken(addr string) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if l.tokens == nil {
		l.tokens = make(map[string]token)
	}
	if len(l.tokens) >= tokenPurgeSize {
		for a, t := range l.tokens {
			if now.After(t.expiry) {
				delete(l.tokens, a)
			}
		}
	}
	if l.rng == nil {
		l.rng = rand.New(rand.NewSource(now.UnixNano()))
	}
	value := l.rng.Int31()
	l.tokens[addr] = token{value: value, expiry: now.Add(tokenLifetime)}
	return value
}

// validateToken checks whether a previously issued token remains valid for the
// provided address.
func (l *Listener) validateToken(addr string, value int32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	token, ok := l.tokens[addr]
	if !ok || time.Now().After(token.expiry) || token.value != value {
		delete(l.tokens, addr)
		return false
	}
	return true
}

// writeHandshake constructs the handshake response that contains the issued
// token.
func (l *Listener) writeHandshake(addr net.Addr, sequence, token int32) {
	buf := bytes.NewBuffer(make([]byte, 0, 1+4+12))
	buf.WriteByte(queryTypeHandshake)
	_ = binary.Write(buf, binary.BigEndian, sequence)

	tokenStr := strconv.FormatInt(int64(token), 10)
	if len(tokenStr) > 12 {
		tokenStr = tokenStr[:12]
	}
	buf.WriteString(tokenStr)
	if padding := 12 - len(tokenStr); padding > 0 {
		buf.Write(make([]byte, padding))
	}
	if _, err := l.conn.WriteTo(buf.Bytes(), addr); err != nil {
		l.log.Debug("query handshake write failed", "err", err, "raddr", addr.String())
	}
}

// writeInfo renders the full status payload for a validated query request.
// The player section lists the entity types watched.
func (l *Listener) writeInfo(addr net.Addr, sequence int32) {
	data := l.collectData()

	buf := bytes.NewBuffer(make([]byte, 0, 256))
	buf.WriteByte(queryTypeInformation)
	_ = binary.Write(buf, binary.BigEndian, sequence)
	buf.Write(querySplitNum[:])
	buf.WriteByte(0x80)
	buf.WriteByte(0x00)

	for _, kv := range data.keyValues() {
		buf.WriteString(kv.key)
		buf.WriteByte(0x00)
		buf.WriteString(kv.value)
		buf.WriteByte(0x00)
	}
	buf.WriteByte(0x00)
	buf.Write(queryPlayerKey[:])
	for _, name := range data.Watched {
		buf.WriteString(name)
		buf.WriteByte(0x00)
	}
	buf.WriteByte(0x00)

	if _, err := l.conn.WriteTo(buf.Bytes(), addr); err != nil {
		l.log.Debug("query info write failed", "err", err, "raddr", addr.String())
	}
}

func parseTokenValue(payload []byte) (int32, bool) {
	trimmed := payload
	if len(trimmed) >= 4 {
		if i := bytes.Index(trimmed, []byte{0xff, 0xff, 0xff, 0x01}); i >= 0 {
			trimmed = trimmed[:i]
		}
	}
	trimmed = bytes.TrimRight(trimmed, "\x00")
	if len(trimmed) > 0 {
		if value, err := strconv.ParseInt(string(trimmed), 10, 32); err == nil {
			return int32(value), true
		}
	}
	if len(payload) >= 4 {
		return int32(binary.BigEndian.Uint32(payload[:4])), true
	}
	return 0, false
}
