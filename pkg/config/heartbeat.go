package config

// ReadMonitoredNodes returns every consumer-heartbeat entry configured on
// the remote node, as [nodeId, periodMs] pairs read from object 0x1016.
func (config *NodeConfigurator) ReadMonitoredNodes() ([][]uint16, error) {
	nbMonitored, err := config.ReadMaxMonitorable()
	if err != nil {
		return nil, err
	}
	monitored := make([][]uint16, 0)
	for i := uint8(1); i <= nbMonitored; i++ {
		periodAndId, err := config.client.ReadUint32(config.nodeId, 0x1016, i)
		if err != nil {
			return monitored, err
		}
		nodeId := uint16((periodAndId >> 16) & 0xFF)
		period := uint16(periodAndId)
		monitored = append(monitored, []uint16{nodeId, period})
	}
	return monitored, nil
}

// ReadMaxMonitorable returns how many consumer-heartbeat slots (0x1016
// sub-entries) the remote node supports.
func (config *NodeConfigurator) ReadMaxMonitorable() (uint8, error) {
	nbMonitored, err := config.client.ReadUint8(config.nodeId, 0x1016, 0x0)
	if err != nil {
		return 0, err
	}
	return nbMonitored, nil
}

// WriteMonitoredNode adds or replaces a consumer-heartbeat slot. index must
// be in [1, ReadMaxMonitorable()].
func (config *NodeConfigurator) WriteMonitoredNode(index uint8, nodeId uint8, periodMs uint16) error {
	periodAndId := uint32(nodeId)<<16 + uint32(periodMs&0xFFFF)
	return config.client.WriteRaw(config.nodeId, 0x1016, index, periodAndId, false)
}

// ReadHeartbeatPeriod returns the remote node's producer heartbeat period,
// in milliseconds, from object 0x1017. Zero means the producer is disabled.
func (config *NodeConfigurator) ReadHeartbeatPeriod() (uint16, error) {
	return config.client.ReadUint16(config.nodeId, 0x1017, 0)
}

// WriteHeartbeatPeriod sets the remote node's producer heartbeat period, in
// milliseconds. Zero disables the producer.
func (config *NodeConfigurator) WriteHeartbeatPeriod(periodMs uint16) error {
	return config.client.WriteRaw(config.nodeId, 0x1017, 0, periodMs, false)
}
