package prefs

import (
	"context"

	libnats "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NATS keeps preferences in a JetStream key-value bucket.
type NATS struct {
	conn *libnats.Conn
	kv   jetstream.KeyValue
}

// ConnectNATS 连接 NATS 并确保 bucket 存在
func ConnectNATS(ctx context.Context, url, bucket string) (*NATS, error) {
	if url == "" {
		url = libnats.DefaultURL
	}

	nc, err := libnats.Connect(url, libnats.Name("wyr"))
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, errors.Wrap(err, "jetstream")
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "per-user would-you-rather preferences",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, errors.Wrapf(err, "key value bucket %s", bucket)
	}
	log.Info().Str("bucket", bucket).Msg("偏好存储已就绪")

	return &NATS{conn: nc, kv: kv}, nil
}

func (n *NATS) Get(ctx context.Context, key string) (string, bool, error) {
	entry, err := n.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "get %s", key)
	}
	return string(entry.Value()), true, nil
}

func (n *NATS) Set(ctx context.Context, key, value string) error {
	if _, err := n.kv.PutString(ctx, key, value); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	return nil
}

func (n *NATS) HealthCheck() error {
	_, err := n.conn.RTT()
	return err
}

func (n *NATS) Close() error {
	return n.conn.Drain()
}
