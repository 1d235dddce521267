// Package mongo implements the networked document-database guild store on
// MongoDB. One document per guild, keyed by the guild ID in _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/alem-hub/guild-leveling/internal/domain/guild"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI            string
	Database       string
	Collection     string
	MaxPoolSize    uint64
	ConnectTimeout time.Duration
}

// DefaultConfig returns defaults for a local server.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "leveling",
		Collection:     "guilds",
		ConnectTimeout: 10 * time.Second,
	}
}

// guildDoc is the stored shape of a guild.
type guildDoc struct {
	ID        string      `bson:"_id"`
	Members   []memberDoc `bson:"members"`
	UpdatedAt time.Time   `bson:"updated_at"`
}

type memberDoc struct {
	ID    string `bson:"id"`
	Level int    `bson:"level"`
	XP    int    `bson:"xp"`
}

func toDoc(g *guild.Guild) guildDoc {
	doc := guildDoc{ID: g.ID, Members: make([]memberDoc, len(g.Members)), UpdatedAt: time.Now().UTC()}
	for i, m := range g.Members {
		doc.Members[i] = memberDoc{ID: m.ID, Level: m.Level, XP: m.XP}
	}
	return doc
}

func (d guildDoc) toGuild() *guild.Guild {
	g := &guild.Guild{ID: d.ID, Members: make([]guild.Member, len(d.Members))}
	for i, m := range d.Members {
		g.Members[i] = guild.Member{ID: m.ID, Level: m.Level, XP: m.XP}
	}
	return g
}

// documents is the collection access the store needs. Find returns
// mongo.ErrNoDocuments for a missing guild.
type documents interface {
	Find(ctx context.Context, id string) (*guildDoc, error)
	Replace(ctx context.Context, doc guildDoc) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Store implements guild.Repository on a MongoDB collection.
type Store struct {
	docs documents
}

// Open connects, pings and returns a store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return newStore(&collection{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}), nil
}

// newStore wraps a documents implementation.
func newStore(docs documents) *Store {
	return &Store{docs: docs}
}

// GetGuild implements guild.Repository.
func (s *Store) GetGuild(ctx context.Context, guildID string) (*guild.Guild, error) {
	doc, err := s.docs.Find(ctx, guildID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, guild.ErrGuildNotFound
		}
		return nil, fmt.Errorf("find guild %s: %w", guildID, err)
	}
	return doc.toGuild(), nil
}

// PutGuild implements guild.Repository.
func (s *Store) PutGuild(ctx context.Context, g *guild.Guild) (*guild.Guild, error) {
	if err := s.docs.Replace(ctx, toDoc(g)); err != nil {
		return nil, fmt.Errorf("replace guild %s: %w", g.ID, err)
	}
	return g.Clone(), nil
}

// Ping implements guild.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return s.docs.Ping(ctx)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.docs.Close(ctx)
}

// collection is the driver-backed documents.
type collection struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func (c *collection) Find(ctx context.Context, id string) (*guildDoc, error) {
	var doc guildDoc
	if err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *collection) Replace(ctx context.Context, doc guildDoc) error {
	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (c *collection) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, nil)
}

func (c *collection) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

var (
	_ guild.Repository = (*Store)(nil)
	_ guild.Pinger     = (*Store)(nil)
)
