package backend

import (
	"fmt"

	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/receipts/dropbox"
	"expensetracker/internal/receipts/gdrive"
	"expensetracker/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("%w: app config is nil", core.ErrConfiguration)
	}

	dialect := storage.Dialect(appConfig.DataBackend)
	if !dialect.IsValid() {
		return Config{}, fmt.Errorf("%w: invalid data backend in config: %s", core.ErrConfiguration, appConfig.DataBackend)
	}

	return Config{
		Storage: storage.Config{
			Dialect:     dialect,
			SQLitePath:  appConfig.SQLiteDBPath,
			DatabaseURL: appConfig.DatabaseURL,
			DatabaseKey: appConfig.DatabaseKey,
		},

		ReceiptBackend: appConfig.ReceiptBackend,
		Google: GoogleConfig{
			ServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
			OAuthClientJSON:    appConfig.GoogleOAuthClientJSON,
			OAuthTokenJSON:     appConfig.GoogleOAuthTokenJSON,
			FolderID:           appConfig.GoogleDriveFolderID,
		},
		Dropbox: DropboxConfig{
			AccessToken:  appConfig.DropboxAPIToken,
			RefreshToken: appConfig.DropboxRefreshToken,
			AppKey:       appConfig.DropboxAppKey,
			AppSecret:    appConfig.DropboxAppSecret,
			FolderPath:   appConfig.DropboxFolderPath,
		},

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

func (g GoogleConfig) credentials() gdrive.Credentials {
	return gdrive.Credentials{
		ServiceAccountJSON: []byte(g.ServiceAccountJSON),
		OAuthClientJSON:    []byte(g.OAuthClientJSON),
		OAuthTokenJSON:     []byte(g.OAuthTokenJSON),
	}
}

func (d DropboxConfig) credentials() dropbox.Credentials {
	return dropbox.Credentials{
		AccessToken:  d.AccessToken,
		RefreshToken: d.RefreshToken,
		AppKey:       d.AppKey,
		AppSecret:    d.AppSecret,
	}
}

// SelectReceiptStore picks the adapter for the configured receipt backend.
// "auto" prefers Google Drive, then Dropbox. An explicit backend without
// credentials, or no credentials at all, selects "none".
func (c Config) SelectReceiptStore() string {
	google := c.Google.credentials().Configured()
	dbx := c.Dropbox.credentials().Configured()

	switch c.ReceiptBackend {
	case config.ReceiptBackendGDrive:
		if google {
			return config.ReceiptBackendGDrive
		}
	case config.ReceiptBackendDropbox:
		if dbx {
			return config.ReceiptBackendDropbox
		}
	case config.ReceiptBackendAuto, "":
		switch {
		case google:
			return config.ReceiptBackendGDrive
		case dbx:
			return config.ReceiptBackendDropbox
		}
	}
	return config.ReceiptBackendNone
}
