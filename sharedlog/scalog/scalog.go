// Package scalog backs shard streams with a Scalog shared log. Scalog keeps a
// single total order, so each shard stream is a tagged subsequence of it:
// every append is a framed record carrying the stream name under tag "n".
// Scalog never trims on request and has no per-stream index, so Len,
// Exists and Delete return sharedlog.ErrUnsupported.
package scalog

import (
	"context"
	"strconv"
	"sync"

	"github.com/chn0318/redolog/redolog/record"
	"github.com/chn0318/redolog/sharedlog"
	"github.com/chn0318/scalog/client"
	"github.com/chn0318/scalog/pkg/address"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// TagStream names the shard stream a framed scalog entry belongs to.
const TagStream = "n"

const defaultNumClients = 4

type ScalogSystem struct {
	clients []*client.Client

	mu   sync.Mutex
	next int
}

var _ sharedlog.Store = (*ScalogSystem)(nil)

func NewScalogSystem(v *viper.Viper) (*ScalogSystem, error) {
	numReplica := int32(v.GetInt("data-replication-factor"))
	discPort := uint16(v.GetInt("disc-port"))
	discIp := v.GetString("disc-ip")
	discAddr := address.NewGeneralDiscAddr(discIp, discPort)
	dataPort := uint16(v.GetInt("data-port"))
	dataAddr := address.NewGeneralDataAddr("data-%v-%v-ip", numReplica, dataPort)
	numClients := v.GetInt("scalog-clients")
	if numClients <= 0 {
		numClients = defaultNumClients
	}

	clients := make([]*client.Client, 0, numClients)
	for i := 0; i < numClients; i++ {
		c, err := client.NewClient(dataAddr, discAddr, numReplica)
		if err != nil {
			return nil, errors.Wrapf(err, "scalog client %d", i)
		}
		clients = append(clients, c)
	}

	return &ScalogSystem{
		clients: clients,
	}, nil
}

func (s *ScalogSystem) pickClient() *client.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.clients[s.next]
	s.next = (s.next + 1) % len(s.clients)
	return c
}

func (s *ScalogSystem) Stream(name string) sharedlog.Stream {
	return &scalogStream{sys: s, name: name}
}

func (s *ScalogSystem) Close() error { return nil }

// Read fetches the entry at ref and returns its stream name and fields.
func (s *ScalogSystem) Read(ref sharedlog.RecordRef) (string, record.Fields, error) {
	gsn, err := strconv.ParseInt(ref.ID, 10, 64)
	if err != nil {
		return "", nil, errors.Wrapf(err, "scalog ref %s", ref)
	}
	rid := int32(0)
	c := s.pickClient()

	data, err := c.Read(gsn, int32(ref.ShardID), rid)
	if err != nil {
		return "", nil, errors.Wrapf(err, "scalog read %s", ref)
	}
	stream, fields, err := splitEntry([]byte(data))
	if err != nil {
		return "", nil, errors.Wrapf(err, "scalog entry %s", ref)
	}
	return stream, fields, nil
}

// joinEntry frames fields behind the stream tag.
func joinEntry(stream string, fields record.Fields) []byte {
	tagged := make(record.Fields, 0, len(fields)+1)
	tagged = append(tagged, record.Field{Tag: TagStream, Value: []byte(stream)})
	tagged = append(tagged, fields...)
	return record.Frame(tagged)
}

// splitEntry undoes joinEntry.
func splitEntry(b []byte) (string, record.Fields, error) {
	f, err := record.Unframe(b)
	if err != nil {
		return "", nil, err
	}
	if len(f) == 0 || f[0].Tag != TagStream {
		return "", nil, errors.Wrap(record.ErrMalformed, "no stream tag")
	}
	return string(f[0].Value), f[1:], nil
}

type scalogStream struct {
	sys  *ScalogSystem
	name string
}

func (s *scalogStream) Name() string { return s.name }

func (s *scalogStream) Append(ctx context.Context, fields record.Fields) (sharedlog.RecordRef, error) {
	data := joinEntry(s.name, fields)

	c := s.sys.pickClient()

	gsn, sid, err := c.AppendOne(string(data))
	if err != nil {
		return sharedlog.RecordRef{}, errors.Wrapf(err, "scalog append %s", s.name)
	}
	return sharedlog.ShardedRef(uint32(sid), strconv.FormatInt(int64(gsn), 10)), nil
}

func (s *scalogStream) Len(ctx context.Context) (int64, error) {
	return 0, errors.Wrapf(sharedlog.ErrUnsupported, "scalog len %s", s.name)
}

func (s *scalogStream) Exists(ctx context.Context) (bool, error) {
	return false, errors.Wrapf(sharedlog.ErrUnsupported, "scalog exists %s", s.name)
}

func (s *scalogStream) Delete(ctx context.Context) (bool, error) {
	return false, errors.Wrapf(sharedlog.ErrUnsupported, "scalog delete %s", s.name)
}
