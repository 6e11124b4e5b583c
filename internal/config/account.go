package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MimeLyc/video-uploader/internal/errs"
)

// Account mirrors the account.yaml layout used by earlier deployments.
type Account struct {
	DB  DBAccount  `yaml:"DB_INFO"`
	OSS OSSAccount `yaml:"OSS_INFO"`
}

type DBAccount struct {
	Engine   string `yaml:"db_engine"`
	User     string `yaml:"db_user"`
	Password string `yaml:"db_password"`
	Host     string `yaml:"db_host"`
	Port     int    `yaml:"db_port"`
	Name     string `yaml:"db_name"`
}

type OSSAccount struct {
	BucketName      string `yaml:"bucket_name"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	SaveDir         string `yaml:"oss_save_dir"`
}

// Account returns the credential part of the configuration in account file form.
func (c *Config) Account() Account {
	return Account{
		DB: DBAccount{
			Engine:   c.DB.Driver,
			User:     c.DB.User,
			Password: c.DB.Password,
			Host:     c.DB.Host,
			Port:     c.DB.Port,
			Name:     c.DB.Name,
		},
		OSS: OSSAccount{
			BucketName:      c.OSS.Bucket,
			Endpoint:        c.OSS.Endpoint,
			AccessKeyID:     c.OSS.AccessKeyID,
			AccessKeySecret: c.OSS.AccessKeySecret,
			SaveDir:         c.OSS.SaveDir,
		},
	}
}

func LoadAccountFile(path string) (Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Account{}, errs.Wrap(err, errs.KindConfig, "read account file").With("path", path)
	}
	var account Account
	if err := yaml.Unmarshal(data, &account); err != nil {
		return Account{}, errs.Wrap(err, errs.KindConfig, "invalid account file").With("path", path)
	}
	return account, nil
}

func WriteAccountFile(path string, account Account) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(err, errs.KindConfig, "create account file directory")
		}
	}

	content, err := yaml.Marshal(account)
	if err != nil {
		return errs.Wrap(err, errs.KindConfig, "encode account file")
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return errs.Wrap(err, errs.KindConfig, "write account file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errs.Wrap(err, errs.KindConfig, "write account file")
	}
	return nil
}
