package resource

import (
	"fmt"
	"strconv"
	"sync"

	goRedis "github.com/go-redis/redis/v8"
	"github.com/spaolacci/murmur3"
)

// Pool shares Redis clients between managers that use the same persistent id
// and connection target. Clients are reference counted and closed on last release.
type Pool struct {
	clients map[string]*pooledClient
	mu      sync.Mutex
}

type pooledClient struct {
	client *goRedis.Client
	refs   int
}

// NewPool creates empty pool
func NewPool() *Pool {
	return &Pool{clients: make(map[string]*pooledClient)}
}

// sharedPool is used by managers created without WithPool
var sharedPool = NewPool()

// SharedPool returns pool used by default by every Manager in the process
func SharedPool() *Pool {
	return sharedPool
}

// Len returns number of distinct clients held by the pool
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.clients)
}

// acquire returns client stored under key computed from cfg, dialing a new one when absent.
// reused is true when client was already held by the pool.
func (p *Pool) acquire(cfg Config, opt *goRedis.Options, dial Dialer) (client *goRedis.Client, key string, reused bool) {
	key = poolKey(cfg)

	p.mu.Lock()
	defer p.mu.Unlock()

	if pc, ok := p.clients[key]; ok {
		pc.refs++
		return pc.client, key, true
	}

	client = dial(opt)
	p.clients[key] = &pooledClient{client: client, refs: 1}
	return client, key, false
}

// release drops one reference and closes client when nobody uses it
func (p *Pool) release(key string) error {
	p.mu.Lock()
	pc, ok := p.clients[key]
	if !ok {
		p.mu.Unlock()
		return nil
	}

	pc.refs--
	if pc.refs > 0 {
		p.mu.Unlock()
		return nil
	}
	delete(p.clients, key)
	p.mu.Unlock()

	return pc.client.Close()
}

// poolKey hashes everything that makes two connections interchangeable
func poolKey(cfg Config) string {
	h := murmur3.New128()
	parts := []string{
		cfg.PersistentID,
		cfg.Server.network(),
		cfg.Server.Addr(),
		strconv.FormatBool(cfg.Server.TLS),
		cfg.Server.Timeout.String(),
		cfg.Password,
		strconv.Itoa(cfg.Database),
		cfg.LibOptions[LibOptClientName],
	}
	for _, part := range parts {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}

	hi, lo := h.Sum128()
	return fmt.Sprintf("%016x%016x", hi, lo)
}
