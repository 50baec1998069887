package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID
// Val: raw JSON bytes for that device. Omitted keys take Default() values.
// -----------------------------------------------------------------------------

const cfgPG12 = `{
  "sensor": {
      "address": 64,
      "configure": true,
      "resolution": 186,
      "settle_ms": 80
  },
  "link": {
      "queue_size": 64,
      "max_payload": 63,
      "self_test": true
  },
  "timer": {
      "period_ms": 2700,
      "active_ms": 150
  },
  "sleep": {
      "system_floor": 3
  },
  "alarm": {
      "threshold_deci_f": 800
  }
}`

// cfgSim is the host simulation: no settle delay and info logging.
const cfgSim = `{
  "sensor": {
      "configure": true,
      "settle_ms": 1,
      "max_nack_retries": 64
  },
  "link": {
      "self_test": true
  },
  "timer": {
      "period_ms": 500,
      "active_ms": 10
  },
  "log": {
      "level": "info"
  }
}`

var embeddedConfigs = map[string][]byte{
	"efm32pg12": []byte(cfgPG12),
	"sim":       []byte(cfgSim),
}
