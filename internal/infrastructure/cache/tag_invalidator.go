// Package cache invalidación por etiqueta de las vistas que dependen de ventas y stock.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/pos-multitienda/pkg/config"
)

const (
	// DefaultChannel canal Pub/Sub donde se anuncia cada etiqueta invalidada.
	DefaultChannel = "cache:invalidate"

	defaultPingTimeout = 5 * time.Second
)

// versionKey clave del contador de versión de una etiqueta.
func versionKey(tag string) string {
	return "cache:tag:" + tag + ":version"
}

// RedisInvalidator sube la versión de cada etiqueta y la publica en un canal.
// Los lectores comparan la versión guardada con la actual para descartar entradas viejas.
type RedisInvalidator struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	logger     zerolog.Logger
}

// Option configura el invalidador.
type Option func(*RedisInvalidator)

// WithChannel cambia el canal Pub/Sub.
func WithChannel(channel string) Option {
	return func(i *RedisInvalidator) {
		if channel != "" {
			i.channel = channel
		}
	}
}

// WithLogger asigna el logger.
func WithLogger(l zerolog.Logger) Option {
	return func(i *RedisInvalidator) { i.logger = l }
}

// NewRedisInvalidator abre un cliente propio y verifica la conexión.
func NewRedisInvalidator(cfg config.RedisConfig, opts ...Option) (*RedisInvalidator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("conectar a redis %s: %w", cfg.Addr, err)
	}

	i := newInvalidator(client, true, opts)
	return i, nil
}

// NewRedisInvalidatorWithClient usa un cliente existente; quien lo creó lo cierra.
func NewRedisInvalidatorWithClient(client *redis.Client, opts ...Option) *RedisInvalidator {
	return newInvalidator(client, false, opts)
}

func newInvalidator(client *redis.Client, owns bool, opts []Option) *RedisInvalidator {
	i := &RedisInvalidator{
		client:     client,
		ownsClient: owns,
		channel:    DefaultChannel,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invalidate incrementa la versión de cada etiqueta y la publica, todo en un único pipeline.
func (i *RedisInvalidator) Invalidate(ctx context.Context, tags ...string) error {
	if len(tags) == 0 {
		return nil
	}
	_, err := i.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, tag := range tags {
			p.Incr(ctx, versionKey(tag))
			p.Publish(ctx, i.channel, tag)
		}
		return nil
	})
	if err != nil {
		i.logger.Warn().Err(err).Strs("tags", tags).Msg("no se pudo invalidar cache")
		return fmt.Errorf("invalidar etiquetas %v: %w", tags, err)
	}
	i.logger.Debug().Strs("tags", tags).Msg("cache invalidada")
	return nil
}

// Version versión actual de una etiqueta; 0 si nunca se invalidó.
func (i *RedisInvalidator) Version(ctx context.Context, tag string) (int64, error) {
	v, err := i.client.Get(ctx, versionKey(tag)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("leer versión de %s: %w", tag, err)
	}
	return v, nil
}

// Subscribe recibe las etiquetas invalidadas hasta que ctx termine.
func (i *RedisInvalidator) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := i.client.Subscribe(ctx, i.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("suscribir a %s: %w", i.channel, err)
	}
	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- m.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping verifica la conexión (para /health).
func (i *RedisInvalidator) Ping(ctx context.Context) error {
	return i.client.Ping(ctx).Err()
}

// Close cierra el cliente solo si lo abrió el invalidador.
func (i *RedisInvalidator) Close() error {
	if !i.ownsClient {
		return nil
	}
	return i.client.Close()
}

// Noop invalidador sin backend, usado cuando no hay Redis configurado.
type Noop struct{}

// Invalidate no hace nada.
func (Noop) Invalidate(context.Context, ...string) error { return nil }
