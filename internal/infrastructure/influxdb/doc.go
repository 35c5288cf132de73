// Package influxdb records polled device values as InfluxDB v2 points.
//
// It is optional (influxdb.enabled). Each numeric or boolean property value
// becomes one point:
//
//	tuya_property,device=lamp1,device_id=bf01,property=bright_value value=500
//
// Writes go through the client library's batched, non-blocking write API.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { logger.Warn("influx write failed", "error", err) })
package influxdb
