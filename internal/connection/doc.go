// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns two independent WebSocket channels: live market ticks
//     ({base}/market-data) and system status ({base}/system-status)
//   - Drives reconnection after abnormal closes with a fixed delay
//   - Exposes Connect/Disconnect/IsConnected to the feed session
//   - Merges inbound frames into one channel for the Message Dispatcher
//
// Transport failures never surface as errors to the consumer; they are
// logged and absorbed into the connectivity state.
package connection
