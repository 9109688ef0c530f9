package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/config"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/rcc"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/rcckv/rcckv/proto/pkg/rccpb"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// connPool keeps one lazily dialed connection per partition.
type connPool struct {
	addrs map[uint32]string

	sync.RWMutex
	conns   map[uint32]*grpc.ClientConn
	clients map[uint32]rccpb.RccClient
}

func newConnPool(addrs map[uint32]string) *connPool {
	return &connPool{
		addrs:   addrs,
		conns:   make(map[uint32]*grpc.ClientConn),
		clients: make(map[uint32]rccpb.RccClient),
	}
}

func (p *connPool) partitions() []uint32 {
	pars := make([]uint32, 0, len(p.addrs))
	for par := range p.addrs {
		pars = append(pars, par)
	}
	sort.Slice(pars, func(i, j int) bool { return pars[i] < pars[j] })
	return pars
}

func (p *connPool) getClient(partition uint32) (rccpb.RccClient, error) {
	p.RLock()
	if c, ok := p.clients[partition]; ok {
		p.RUnlock()
		return c, nil
	}
	p.RUnlock()

	addr, ok := p.addrs[partition]
	if !ok {
		return nil, errors.Errorf("no address for partition %d", partition)
	}
	cc, err := grpc.Dial(addr, grpc.WithInsecure(),
		grpc.WithInitialWindowSize(2*1024*1024),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                3 * time.Second,
			Timeout:             60 * time.Second,
			PermitWithoutStream: true,
		}))
	if err != nil {
		return nil, errors.Annotatef(err, "dial partition %d at %s", partition, addr)
	}

	p.Lock()
	defer p.Unlock()
	if c, ok := p.clients[partition]; ok {
		cc.Close()
		return c, nil
	}
	c := rccpb.NewRccClient(cc)
	p.conns[partition] = cc
	p.clients[partition] = c
	return c, nil
}

func (p *connPool) close() {
	p.Lock()
	defer p.Unlock()
	for par, cc := range p.conns {
		if err := cc.Close(); err != nil {
			log.Warn("close connection", zap.Uint32("partition", par), zap.Error(err))
		}
	}
	p.conns = make(map[uint32]*grpc.ClientConn)
	p.clients = make(map[uint32]rccpb.RccClient)
}

var _ rcc.Client = new(RemoteClient)

// RemoteClient lets a Coordinator reach partitions over gRPC.
type RemoteClient struct {
	pool *connPool
}

func NewRemoteClient(addrs map[uint32]string) *RemoteClient {
	return &RemoteClient{pool: newConnPool(addrs)}
}

func (c *RemoteClient) Dispatch(ctx context.Context, partition uint32, pieces []*txn.Piece) (*depgraph.Graph, error) {
	client, err := c.pool.getClient(partition)
	if err != nil {
		return nil, err
	}
	resp, err := client.Dispatch(ctx, &rccpb.DispatchRequest{Batch: txn.MarshalBatch(pieces)})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if resp.Res != rcc.DispatchOK {
		return nil, rcc.ErrRejected
	}
	return decodeGraph(resp.Graph)
}

func (c *RemoteClient) Commit(ctx context.Context, partition uint32, txnID uint64, g *depgraph.Graph) (*rcc.CommitResult, error) {
	client, err := c.pool.getClient(partition)
	if err != nil {
		return nil, err
	}
	resp, err := client.Commit(ctx, &rccpb.CommitRequest{TxnId: txnID, Graph: g.Marshal()})
	if err != nil {
		return nil, errors.Trace(err)
	}
	res := &rcc.CommitResult{Committed: resp.Committed, Output: txn.OutputFromProto(resp.Outputs)}
	if resp.Error != "" {
		res.Err = errors.New(resp.Error)
	}
	return res, nil
}

func (c *RemoteClient) Close() {
	c.pool.close()
}

var _ rcc.Commo = new(Commo)

// Commo carries the inquiries of one partition's scheduler to its peers. Inquiries to each peer are rate limited
// and run on their own goroutine, since the peer may hold the answer until the transaction is committing.
type Commo struct {
	self     uint32
	pool     *connPool
	limiters map[uint32]*rate.Limiter
	timeout  time.Duration

	sent   atomic.Uint64
	failed atomic.Uint64
	wg     sync.WaitGroup
}

func NewCommo(conf *config.Config) *Commo {
	addrs := conf.PeerAddrs()
	limiters := make(map[uint32]*rate.Limiter, len(addrs))
	burst := int(conf.InquireRate)
	if burst < 1 {
		burst = 1
	}
	for par := range addrs {
		limiters[par] = rate.NewLimiter(rate.Limit(conf.InquireRate), burst)
	}
	return &Commo{
		self:     conf.PartitionID,
		pool:     newConnPool(addrs),
		limiters: limiters,
		timeout:  conf.EpochDuration.Duration,
	}
}

// Partitions lists the peers, without this partition.
func (c *Commo) Partitions() []uint32 {
	return c.pool.partitions()
}

func (c *Commo) SendInquire(partition uint32, epoch, txnID uint64, done func(*depgraph.Graph, error)) {
	if lim, ok := c.limiters[partition]; ok && !lim.Allow() {
		c.failed.Inc()
		done(nil, errors.Errorf("inquiries to partition %d are rate limited", partition))
		return
	}
	c.sent.Inc()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		g, err := c.inquire(partition, epoch, txnID)
		if err != nil {
			c.failed.Inc()
		}
		done(g, err)
	}()
}

func (c *Commo) inquire(partition uint32, epoch, txnID uint64) (*depgraph.Graph, error) {
	client, err := c.pool.getClient(partition)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	resp, err := client.Inquire(ctx, &rccpb.InquireRequest{Epoch: epoch, TxnId: txnID})
	if err != nil {
		return nil, errors.Annotatef(err, "inquire txn %d at partition %d", txnID, partition)
	}
	return decodeGraph(resp.Graph)
}

// Sent and Failed count inquiries since start.
func (c *Commo) Sent() uint64 {
	return c.sent.Load()
}

func (c *Commo) Failed() uint64 {
	return c.failed.Load()
}

// Close waits for inflight inquiries and closes the connections.
func (c *Commo) Close() {
	c.wg.Wait()
	c.pool.close()
}
