package service

// Broadcaster is the publish side of the transport (avoids an import cycle
// with the ws package; the hub implements it, tests fake it). Delivery is
// per connection or per room channel; room channel membership is managed by
// the coordinator via JoinRoom/LeaveRoom.
type Broadcaster interface {
	JoinRoom(connID, roomCode string)
	LeaveRoom(connID, roomCode string)
	ToConn(connID, event string, payload interface{})
	ToRoom(roomCode, event string, payload interface{})
	ToRoomExcept(roomCode, exceptConnID, event string, payload interface{})
}
