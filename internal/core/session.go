package core

// memberSession implements MemberSession by pairing id + transport.
type memberSession struct {
	id   ConnectionID
	conn SignalConnection
}

func NewMemberSession(id ConnectionID, conn SignalConnection) MemberSession {
	return &memberSession{id: id, conn: conn}
}

func (m *memberSession) ID() ConnectionID         { return m.id }
func (m *memberSession) Signal() SignalConnection { return m.conn }
