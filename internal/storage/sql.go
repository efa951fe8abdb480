package storage

import (
	_ "embed"
)

//go:embed schema.sql
var initSchemaSQL string

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_wifi_session ON wifi (session_id, measured_at);
CREATE INDEX IF NOT EXISTS idx_wifi_batch ON wifi (batch_id);
CREATE INDEX IF NOT EXISTS idx_bluetooth_session ON bluetooth (session_id, measured_at);
CREATE INDEX IF NOT EXISTS idx_bluetooth_batch ON bluetooth (batch_id);
CREATE INDEX IF NOT EXISTS idx_cellular_session ON cellular (session_id, measured_at);
CREATE INDEX IF NOT EXISTS idx_cellular_batch ON cellular (batch_id);`

	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      source,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
ORDER BY start_time, id`

	insertWiFiSQL = `
INSERT INTO wifi (session_id,
                  batch_id,
                  measured_at,
                  dbm,
                  connected,
                  latitude,
                  longitude,
                  ssid,
                  bssid,
                  frequency,
                  center_freq0,
                  center_freq1,
                  channel_width,
                  capabilities,
                  standard)
VALUES `

	insertBluetoothSQL = `
INSERT INTO bluetooth (session_id,
                       batch_id,
                       measured_at,
                       dbm,
                       connected,
                       latitude,
                       longitude,
                       name,
                       alias,
                       address,
                       device_class,
                       device_type,
                       bond_state)
VALUES `

	insertCellularSQL = `
INSERT INTO cellular (session_id,
                      batch_id,
                      measured_at,
                      dbm,
                      connected,
                      latitude,
                      longitude,
                      technology,
                      mcc,
                      mnc,
                      cell)
VALUES `

	selectWiFiSQL = `
SELECT batch_id,
       measured_at,
       dbm,
       connected,
       latitude,
       longitude,
       ssid,
       bssid,
       frequency,
       center_freq0,
       center_freq1,
       channel_width,
       capabilities,
       standard
FROM wifi`

	selectBluetoothSQL = `
SELECT batch_id,
       measured_at,
       dbm,
       connected,
       latitude,
       longitude,
       name,
       alias,
       address,
       device_class,
       device_type,
       bond_state
FROM bluetooth`

	selectCellularSQL = `
SELECT batch_id,
       measured_at,
       dbm,
       connected,
       latitude,
       longitude,
       technology,
       mcc,
       mnc,
       cell
FROM cellular`
)
