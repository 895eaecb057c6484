// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, waits for in-flight login writes, then
// closes the backends.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if rt := deps.Runtime; rt != nil {
		if rt.Sweeper != nil {
			rt.Sweeper.Stop()
		}
		if rt.Service != nil {
			drained := make(chan struct{})
			go func() {
				rt.Service.Wait()
				close(drained)
			}()
			select {
			case <-drained:
			case <-ctx.Done():
				logger.Warn("shutdown deadline reached before background writes finished")
			}
		}
	}

	if err := closeStores(ctx, deps); err != nil {
		logger.Error("backend close failed", zap.Error(err))
		return err
	}
	logger.Info("backends closed")
	return nil
}

func closeStores(ctx context.Context, deps DBDeps) error {
	var errs []error
	if deps.Redis != nil {
		errs = append(errs, deps.Redis.Close())
	}
	if deps.SQL != nil {
		errs = append(errs, deps.SQL.Close())
	}
	if deps.MongoClient != nil {
		errs = append(errs, deps.MongoClient.Disconnect(ctx))
	}
	return errors.Join(errs...)
}
