package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kjk/movielib/backup"
	"github.com/kjk/movielib/log"
	"github.com/spf13/viper"
)

const envPrefix = "MOVIEDB"

type config struct {
	DB          string
	Verbose     bool
	Lock        bool
	LockTimeout time.Duration
	LogDir      string
	Journal     string
	Memory      bool
	BackupDir   string
	Minio       backup.MinioConfig
	SFTP        backup.SFTPConfig
}

// loadEnvFiles loads .env files from current directory.
// .env.local overrides .env, real environment overrides both
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		if err := godotenv.Load(envFile); err == nil {
			log.Verbosef("loaded %s\n", envFile)
		}
	}
}

func setupViper(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".moviedb")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("db", "movies.txt")
	v.SetDefault("lock_timeout", "3s")

	err := v.ReadInConfig()
	if err == nil {
		log.Verbosef("using config file %s\n", v.ConfigFileUsed())
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if configFile == "" && errors.As(err, &notFound) {
		return nil
	}
	return err
}

func configFromViper(v *viper.Viper) *config {
	c := &config{
		DB:          v.GetString("db"),
		Verbose:     v.GetBool("verbose"),
		Lock:        v.GetBool("lock"),
		LockTimeout: v.GetDuration("lock_timeout"),
		LogDir:      v.GetString("log_dir"),
		Journal:     v.GetString("journal"),
		Memory:      v.GetBool("memory"),
		BackupDir:   v.GetString("backup_dir"),
		Minio: backup.MinioConfig{
			Endpoint: v.GetString("minio.endpoint"),
			Access:   v.GetString("minio.access"),
			Secret:   v.GetString("minio.secret"),
			Bucket:   v.GetString("minio.bucket"),
			Region:   v.GetString("minio.region"),
			Prefix:   v.GetString("minio.prefix"),
			Insecure: v.GetBool("minio.insecure"),
		},
		SFTP: backup.SFTPConfig{
			User:           v.GetString("sftp.user"),
			Addr:           v.GetString("sftp.addr"),
			PrivateKeyPath: v.GetString("sftp.key"),
			Dir:            v.GetString("sftp.dir"),
		},
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(filepath.Dir(c.DB), "backups")
	}
	return c
}
