// Package config loads the runtime configuration of the report tool and
// resolves the file system layout it works in.
//
// # Configuration Sources
//
// Values are layered, later sources overriding earlier ones:
//
//	1. Built-in defaults (Default)
//	2. YAML file (config.yaml or configs/config.yaml, or an explicit path)
//	3. Environment variables prefixed with WB_
//
// # Environment Variables
//
//	WB_CONSOLE_URL=https://seller.wildberries.ru/analytics-reports/sales
//	WB_BROWSER_PROFILE_DIR=/home/me/chrome_profile
//	WB_DELAYS_BETWEEN_KEYS=120ms
//	WB_WAITS_DOWNLOAD=90s
//	WB_AUTH_PHONE=9991234567
//	WB_CABINETS=MAU:53607,MAB:121614
//	WB_API_TOKENS=MAU:token1,MAB:token2
//
// # Validation
//
// The merged struct is validated with go-playground/validator struct tags.
// Cabinet names must be unique and cabinet IDs numeric.
//
// # Paths
//
// ResolvePaths anchors relative directories at WB_PATHS_BASE_DIR or the
// executable directory. Log, trace and metric files live under the logs
// directory unless given as absolute paths.
//
//	paths, _ := cfg.ResolvePaths()
//	working := config.WorkingFilePath(paths.DownloadsDir, "MAU", date)
//	archived := config.ArchiveFilePath(paths.ArchiveDir, "MAU", date)
package config
