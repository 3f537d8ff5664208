// Package timezone はホスト環境のIANAタイムゾーン解決と検証を提供する。
package timezone

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hitoshi/productivitygo/internal/model"
)

const (
	etcTimezonePath  = "/etc/timezone"
	etcLocaltimePath = "/etc/localtime"
	zoneinfoMarker   = "zoneinfo/"
)

// ErrEmptyTimezone はタイムゾーン名が空の場合のエラー。
var ErrEmptyTimezone = errors.New("timezone is empty")

// Validate はnameがロード可能なIANAタイムゾーン名かを検証する。
// "Local" はホスト依存のため受け付けない。
func Validate(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyTimezone
	}
	if name == "Local" {
		return fmt.Errorf("timezone %q is not an IANA name", name)
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("load location %q: %w", name, err)
	}
	return nil
}

// Detector はホストのタイムゾーン識別子を解決する。
// 環境依存の参照先はテスト用に差し替え可能。
type Detector struct {
	lookupEnv func(key string) (string, bool)
	local     func() *time.Location
	readFile  func(name string) ([]byte, error)
	readlink  func(name string) (string, error)
}

// NewDetector は実環境を参照するDetectorを生成する。
func NewDetector() *Detector {
	return &Detector{
		lookupEnv: os.LookupEnv,
		local:     func() *time.Location { return time.Local },
		readFile:  os.ReadFile,
		readlink:  os.Readlink,
	}
}

// Detect はホストで解決されたIANAタイムゾーン名を返す。
// 解決順序: TZ環境変数 → time.Local → /etc/timezone → /etc/localtime のリンク先。
// いずれでも解決できない場合は "UTC" を返す。
func (d *Detector) Detect() string {
	if tz, found := d.lookupEnv("TZ"); found {
		// TZが空で設定されている場合はUTCを意味する
		tz = strings.TrimPrefix(strings.TrimSpace(tz), ":")
		if tz == "" {
			return model.DefaultTimezone
		}
		if Validate(tz) == nil {
			return tz
		}
	}

	if loc := d.local(); loc != nil {
		if name := loc.String(); name != "Local" && Validate(name) == nil {
			return name
		}
	}

	if data, err := d.readFile(etcTimezonePath); err == nil {
		if name := strings.TrimSpace(string(data)); Validate(name) == nil {
			return name
		}
	}

	if target, err := d.readlink(etcLocaltimePath); err == nil {
		if i := strings.LastIndex(target, zoneinfoMarker); i >= 0 {
			name := target[i+len(zoneinfoMarker):]
			name = strings.TrimPrefix(name, "posix/")
			if Validate(name) == nil {
				return name
			}
		}
	}

	return model.DefaultTimezone
}

var defaultDetector = NewDetector()

// Detect は実環境のDetectorでタイムゾーンを解決する。
func Detect() string {
	return defaultDetector.Detect()
}
