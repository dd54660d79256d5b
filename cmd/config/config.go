package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/resonatehq/resmon/internal/aio"
	"github.com/resonatehq/resmon/internal/app/credentials"
	"github.com/resonatehq/resmon/internal/app/fetcher"
	httpPlugin "github.com/resonatehq/resmon/internal/app/plugins/http"
	"github.com/resonatehq/resmon/internal/app/plugins/logger"
	"github.com/resonatehq/resmon/internal/app/plugins/pubsub"
	"github.com/resonatehq/resmon/internal/app/plugins/sqs"
	"github.com/resonatehq/resmon/internal/app/seed"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/sender"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/postgres"
	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/sqlite"
	"github.com/resonatehq/resmon/internal/app/subsystems/api/http"
	"github.com/resonatehq/resmon/internal/kernel/dispatch"
	"github.com/resonatehq/resmon/internal/kernel/system"
	"github.com/resonatehq/resmon/internal/metrics"
	"github.com/resonatehq/resmon/pkg/diff"
	"github.com/resonatehq/resmon/pkg/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	API         API                `flag:"api"`
	Store       Store              `flag:"store"`
	Scheduler   system.Config      `flag:"scheduler"`
	Dispatch    dispatch.Config    `flag:"dispatch"`
	Fetcher     fetcher.Config     `flag:"fetcher"`
	Credentials credentials.Config `flag:"credentials"`
	Diff        Diff               `flag:"diff"`
	Events      sender.Config      `flag:"events"`
	Plugins     Plugins            `flag:"plugins"`
	Seed        seed.Config        `flag:"seed"`
	MetricsAddr string             `flag:"metrics-addr" desc:"prometheus metrics server address" default:":9090"`
	Log         log.Config         `flag:"log"`
}

type API struct {
	Http http.Config `flag:"http"`
}

type Store struct {
	Kind     string          `flag:"kind" desc:"store to use, one of: sqlite, postgres" default:"sqlite"`
	Sqlite   sqlite.Config   `flag:"sqlite"`
	Postgres postgres.Config `flag:"postgres"`
}

type Diff struct {
	Mode string `flag:"mode" desc:"how representations are compared, one of: json, text" default:"json"`
}

type Plugins struct {
	Logger EnabledPlugin[logger.Config]      `flag:"logger"`
	Http   DisabledPlugin[httpPlugin.Config] `flag:"http"`
	Sqs    DisabledPlugin[sqs.Config]        `flag:"sqs"`
	Pubsub DisabledPlugin[pubsub.Config]     `flag:"pubsub"`
}

type EnabledPlugin[T any] struct {
	Enabled bool `flag:"enable" desc:"enable plugin" default:"true" mapstructure:"enable"`
	Config  T    `flag:"-" mapstructure:",squash"`
}

type DisabledPlugin[T any] struct {
	Enabled bool `flag:"enable" desc:"enable plugin" default:"false" mapstructure:"enable"`
	Config  T    `flag:"-" mapstructure:",squash"`
}

// Bind registers a flag for every config field on flags and binds it
// to the matching viper key, for example api.http.addr is bound to
// --api-http-addr.
func (c *Config) Bind(flags *pflag.FlagSet, vip *viper.Viper) error {
	return bind(c, flags, vip, "", "")
}

// BindSection binds a single section of the config, for commands that
// only need part of it.
func BindSection(section any, flags *pflag.FlagSet, vip *viper.Viper, prefix string) error {
	return bind(section, flags, vip, prefix, key(prefix))
}

func (c *Config) Parse(vip *viper.Viper) error {
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := vip.Unmarshal(c, viper.DecodeHook(hooks)); err != nil {
		return err
	}

	return c.Validate()
}

func (c *Config) Validate() error {
	switch c.Store.Kind {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported store %q", c.Store.Kind)
	}

	if _, err := diff.New(diff.Mode(c.Diff.Mode)); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}

	if c.Scheduler.ClaimTimeout <= 0 {
		return fmt.Errorf("scheduler claim timeout must be greater than zero")
	}
	if c.Dispatch.Partitions <= 0 {
		return fmt.Errorf("dispatch partitions must be greater than zero")
	}

	return nil
}

func (c *Config) NewStore() (store.Store, error) {
	switch c.Store.Kind {
	case "sqlite":
		return sqlite.New(&c.Store.Sqlite)
	case "postgres":
		return postgres.New(&c.Store.Postgres)
	default:
		return nil, fmt.Errorf("unsupported store %q", c.Store.Kind)
	}
}

func (p *Plugins) Instantiate(metrics *metrics.Metrics) ([]aio.Plugin, error) {
	plugins := []aio.Plugin{}

	if p.Logger.Enabled {
		plugin, err := logger.New(metrics, &p.Logger.Config)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}
	if p.Http.Enabled {
		plugin, err := httpPlugin.New(metrics, &p.Http.Config)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}
	if p.Sqs.Enabled {
		plugin, err := sqs.New(metrics, &p.Sqs.Config)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}
	if p.Pubsub.Enabled {
		plugin, err := pubsub.New(metrics, &p.Pubsub.Config)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, plugin)
	}

	return plugins, nil
}

// Helper functions

func bind(cfg any, flags *pflag.FlagSet, vip *viper.Viper, fPrefix string, kPrefix string) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		flag := field.Tag.Get("flag")
		desc := field.Tag.Get("desc")
		value := field.Tag.Get("default")

		var n string
		if fPrefix == "" {
			n = flag
		} else if flag == "-" {
			n = fPrefix
		} else {
			n = fmt.Sprintf("%s-%s", fPrefix, flag)
		}

		var k string
		if flag == "-" {
			k = kPrefix
		} else if kPrefix == "" {
			k = key(flag)
		} else {
			k = fmt.Sprintf("%s.%s", kPrefix, key(flag))
		}

		switch field.Type.Kind() {
		case reflect.String:
			flags.String(n, value, desc)
		case reflect.Bool:
			flags.Bool(n, value == "true", desc)
		case reflect.Int:
			v, _ := strconv.Atoi(value)
			flags.Int(n, v, desc)
		case reflect.Int64:
			if field.Type == reflect.TypeOf(time.Duration(0)) {
				v, _ := time.ParseDuration(value)
				flags.Duration(n, v, desc)
			} else {
				v, _ := strconv.ParseInt(value, 10, 64)
				flags.Int64(n, v, desc)
			}
		case reflect.Slice:
			if field.Type.Elem().Kind() != reflect.String {
				panic(fmt.Sprintf("unsupported slice type: %s", field.Type))
			}
			var v []string
			if value != "" {
				v = strings.Split(value, ",")
			}
			flags.StringSlice(n, v, desc)
		case reflect.Map:
			if field.Type != reflect.TypeOf(map[string]string{}) {
				panic(fmt.Sprintf("unsupported map type: %s", field.Type))
			}
			if value == "" {
				value = "{}"
			}
			var v map[string]string
			if err := json.Unmarshal([]byte(value), &v); err != nil {
				return err
			}
			flags.StringToString(n, v, desc)
		case reflect.Struct:
			if err := bind(v.Field(i).Addr().Interface(), flags, vip, n, k); err != nil {
				return err
			}
			continue
		default:
			panic(fmt.Sprintf("unsupported type %s", field.Type.Kind()))
		}

		if err := vip.BindPFlag(k, flags.Lookup(n)); err != nil {
			return err
		}
	}

	return nil
}

// key converts a kebab case flag name to the camel case key used in
// config files, for example metrics-addr becomes metricsAddr.
func key(flag string) string {
	parts := strings.Split(flag, "-")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}

// ReadInConfig reads file, or resmon.yaml from the working or home
// directory when file is empty, and enables RESMON_ prefixed env vars.
// A missing default config file is not an error.
func ReadInConfig(vip *viper.Viper, file string) error {
	if file != "" {
		vip.SetConfigFile(file)
	} else {
		vip.SetConfigName("resmon")
		vip.AddConfigPath(".")
		vip.AddConfigPath("$HOME")
	}

	vip.SetEnvPrefix("resmon")
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	vip.AutomaticEnv()

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	return nil
}
