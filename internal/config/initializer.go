package config

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/seclytics/sirsync/internal/credential"
	"github.com/seclytics/sirsync/internal/cursor"
	"github.com/seclytics/sirsync/internal/grc"
	"github.com/seclytics/sirsync/internal/pipeline"
	"github.com/seclytics/sirsync/internal/portal"
	"github.com/seclytics/sirsync/internal/secrets"
	"github.com/seclytics/sirsync/internal/syncer"
)

// InitializeSyncer wires every component from configuration. The returned
// cleanup releases the credential temp files and any store connection; call
// it on every exit path.
func InitializeSyncer(ctx context.Context, c *SIRSync, logger *zap.Logger) (*syncer.Syncer, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	bundle, err := loadBundle(ctx, c, logger)
	if err != nil {
		return nil, nil, err
	}
	if bundle != nil {
		closers = append(closers, func() {
			if err := bundle.Close(); err != nil {
				logger.Warn("releasing credential bundle", zap.Error(err))
			}
		})
	}

	source, err := grc.New(
		c.Sync.Source.URL,
		c.Sync.Source.APIToken,
		grc.WithLogger(logger.Named("grc")),
		grc.WithPageSize(orDefault(c.Sync.Source.PageSize, 250)),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	portalOpts := []portal.Option{
		portal.WithLogger(logger.Named("portal")),
		portal.WithInsecureSkipVerify(c.Sync.Portal.InsecureSkipVerify),
		portal.WithTimeout(time.Duration(orDefault(c.Sync.Portal.TimeoutSeconds, 30)) * time.Second),
	}
	if bundle != nil {
		portalOpts = append(portalOpts, portal.WithBundle(bundle))
	}
	deliverer, err := portal.New(
		c.Sync.Portal.AuthURL,
		c.Sync.Portal.ItemURL,
		c.Sync.Portal.ClientID,
		c.Sync.Portal.ClientSecret,
		portalOpts...,
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	mapping, err := pipeline.LoadCategoryMapping(c.Sync.Pipeline.MappingPath)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	rejected, untriaged, cur := c.Sync.Pipeline.Filters.PipelineFilters()
	pipe := pipeline.New(
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithMapping(mapping),
		pipeline.WithFilters(pipeline.Filters{
			Rejected:  rejected,
			Untriaged: untriaged,
			Cursor:    cur,
		}),
	)

	store, storeClose, err := InitializeCursorStore(ctx, c, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if storeClose != nil {
		closers = append(closers, storeClose)
	}

	s, err := syncer.New(
		syncer.WithID(orDefaultString(c.Sync.Name, "sirsync")),
		syncer.WithLogger(logger.Named("syncer")),
		syncer.WithSource(source),
		syncer.WithPipeline(pipe),
		syncer.WithDeliverer(deliverer),
		syncer.WithCursorStore(store),
		syncer.WithCursorKey(orDefaultString(c.Sync.Cursor.Key, cursor.DefaultKey)),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return s, cleanup, nil
}

func loadBundle(ctx context.Context, c *SIRSync, logger *zap.Logger) (*credential.Bundle, error) {
	cred := c.Sync.Credential

	switch {
	case cred.PKCS12Path != "":
		return credential.LoadFile(
			cred.PKCS12Path,
			cred.PKCS12Password,
			credential.WithLogger(logger.Named("credential")),
		)

	case cred.SecretID != "":
		manager := secrets.NewManager(
			secrets.WithRegion(cred.Region),
			secrets.WithLogger(logger.Named("secrets")),
		)
		data, password, err := manager.PKCS12(ctx, cred.SecretID)
		if err != nil {
			return nil, err
		}
		if password == "" {
			password = cred.PKCS12Password
		}
		return credential.Load(data, password,
			credential.WithLogger(logger.Named("credential")),
		)

	default:
		// no client certificate configured
		return nil, nil
	}
}

// InitializeCursorStore builds the configured cursor store. The returned
// close function is nil for stores with nothing to release.
func InitializeCursorStore(ctx context.Context, c *SIRSync, logger *zap.Logger) (cursor.Store, func(), error) {
	switch c.Sync.Cursor.Type {
	case "filesystem":
		return cursor.NewFilesystemStore(
			c.Sync.Cursor.Filesystem.Path,
			cursor.FilesystemWithLogger(logger.Named("cursor")),
		), nil, nil

	case "postgres":
		conn, err := pgx.Connect(ctx, c.Sync.Cursor.Postgres.ConnectionString)
		if err != nil {
			return nil, nil, err
		}
		opts := []cursor.PostgresOption{
			cursor.PostgresWithLogger(logger.Named("cursor")),
		}
		if c.Sync.Cursor.Postgres.Table != "" {
			opts = append(opts, cursor.PostgresWithTable(c.Sync.Cursor.Postgres.Table))
		}
		store := cursor.NewPostgresStore(conn, opts...)
		if err := store.EnsureSchema(ctx); err != nil {
			conn.Close(ctx)
			return nil, nil, err
		}
		return store, func() { conn.Close(context.Background()) }, nil

	case "s3":
		return cursor.NewS3Store(
			cursor.S3WithLogger(logger.Named("cursor")),
			cursor.S3WithRegion(c.Sync.Cursor.S3.Region),
			cursor.S3WithBucket(c.Sync.Cursor.S3.Bucket),
			cursor.S3WithPrefix(c.Sync.Cursor.S3.Prefix),
			cursor.S3WithEndpoint(c.Sync.Cursor.S3.Endpoint),
			cursor.S3WithForcePathStyle(c.Sync.Cursor.S3.ForcePathStyle),
		), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown cursor store type: %s", c.Sync.Cursor.Type)
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
