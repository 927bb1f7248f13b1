package wire

import "github.com/stackrox/collector/netaddr"

// Field numbers below are this module's own wire schema; they are not
// generated from a .proto file.
const (
	fAddrFamily = 1
	fAddrBytes  = 2
	fAddrPrefix = 3
	fAddrIsHost = 4
	fAddrPort   = 5

	fConnContainer  = 1
	fConnLocal      = 2
	fConnRemote     = 3
	fConnProto      = 4
	fConnRole       = 5
	fConnCloseTS    = 6
	fConnHasCloseTS = 7

	fEPContainer  = 1
	fEPAddress    = 2
	fEPProto      = 3
	fEPCloseTS    = 4
	fEPHasCloseTS = 5

	fMsgConns = 1
	fMsgEPs   = 2
	fMsgTime  = 3

	fNetV4 = 1
	fNetV6 = 2

	fPubIPsList = 1

	fCtrlNetworks  = 1
	fCtrlPublicIPs = 2
)

func (a Address) marshal(w *protoWriter) {
	w.varintField(fAddrFamily, uint64(a.Family))
	w.bytesField(fAddrBytes, a.Bytes)
	w.varintField(fAddrPrefix, uint64(a.PrefixBits))
	w.boolField(fAddrIsHost, a.IsHost)
	w.varintField(fAddrPort, uint64(a.Port))
}

func unmarshalAddress(buf []byte) (Address, error) {
	var a Address
	r := protoReader{buf: buf}
	for {
		fn, wt, v, b, ok, err := r.next()
		if err != nil {
			return Address{}, err
		}
		if !ok {
			break
		}
		switch fn {
		case fAddrFamily:
			if wt == wireVarint {
				a.Family = Family(v)
			}
		case fAddrBytes:
			if wt == wireBytes {
				a.Bytes = append([]byte(nil), b...)
			}
		case fAddrPrefix:
			if wt == wireVarint {
				a.PrefixBits = uint32(v)
			}
		case fAddrIsHost:
			if wt == wireVarint {
				a.IsHost = v != 0
			}
		case fAddrPort:
			if wt == wireVarint {
				a.Port = uint16(v)
			}
		}
	}
	return a, nil
}

func (c Conn) marshal(w *protoWriter) {
	w.stringField(fConnContainer, c.ContainerID)
	w.messageField(fConnLocal, c.Local.marshal)
	w.messageField(fConnRemote, c.Remote.marshal)
	w.varintField(fConnProto, uint64(c.Protocol))
	w.varintField(fConnRole, uint64(c.Role))
	w.varintField(fConnCloseTS, uint64(c.CloseTimestamp))
	w.boolField(fConnHasCloseTS, c.HasCloseTimestamp)
}

func unmarshalConn(buf []byte) (Conn, error) {
	var c Conn
	r := protoReader{buf: buf}
	for {
		fn, wt, v, b, ok, err := r.next()
		if err != nil {
			return Conn{}, err
		}
		if !ok {
			break
		}
		switch fn {
		case fConnContainer:
			if wt == wireBytes {
				c.ContainerID = string(b)
			}
		case fConnLocal:
			if wt == wireBytes {
				addr, err := unmarshalAddress(b)
				if err != nil {
					return Conn{}, err
				}
				c.Local = addr
			}
		case fConnRemote:
			if wt == wireBytes {
				addr, err := unmarshalAddress(b)
				if err != nil {
					return Conn{}, err
				}
				c.Remote = addr
			}
		case fConnProto:
			if wt == wireVarint {
				c.Protocol = netaddr.L4Proto(v)
			}
		case fConnRole:
			if wt == wireVarint {
				c.Role = Role(v)
			}
		case fConnCloseTS:
			if wt == wireVarint {
				c.CloseTimestamp = int64(v)
			}
		case fConnHasCloseTS:
			if wt == wireVarint {
				c.HasCloseTimestamp = v != 0
			}
		}
	}
	return c, nil
}

func (e Endpoint) marshal(w *protoWriter) {
	w.stringField(fEPContainer, e.ContainerID)
	w.messageField(fEPAddress, e.Address.marshal)
	w.varintField(fEPProto, uint64(e.Protocol))
	w.varintField(fEPCloseTS, uint64(e.CloseTimestamp))
	w.boolField(fEPHasCloseTS, e.HasCloseTimestamp)
}

func unmarshalEndpoint(buf []byte) (Endpoint, error) {
	var e Endpoint
	r := protoReader{buf: buf}
	for {
		fn, wt, v, b, ok, err := r.next()
		if err != nil {
			return Endpoint{}, err
		}
		if !ok {
			break
		}
		switch fn {
		case fEPContainer:
			if wt == wireBytes {
				e.ContainerID = string(b)
			}
		case fEPAddress:
			if wt == wireBytes {
				addr, err := unmarshalAddress(b)
				if err != nil {
					return Endpoint{}, err
				}
				e.Address = addr
			}
		case fEPProto:
			if wt == wireVarint {
				e.Protocol = netaddr.L4Proto(v)
			}
		case fEPCloseTS:
			if wt == wireVarint {
				e.CloseTimestamp = int64(v)
			}
		case fEPHasCloseTS:
			if wt == wireVarint {
				e.HasCloseTimestamp = v != 0
			}
		}
	}
	return e, nil
}

// Marshal encodes m into its protobuf-wire-compatible byte form.
func (m *Message) Marshal() ([]byte, error) {
	var w protoWriter
	for _, c := range m.UpdatedConnections {
		w.messageField(fMsgConns, c.marshal)
	}
	for _, e := range m.UpdatedEndpoints {
		w.messageField(fMsgEPs, e.marshal)
	}
	w.varintField(fMsgTime, uint64(m.TimeMicros))
	return w.bytes(), nil
}

// Unmarshal decodes buf into m.
func (m *Message) Unmarshal(buf []byte) error {
	*m = Message{}
	r := protoReader{buf: buf}
	for {
		fn, wt, v, b, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		switch fn {
		case fMsgConns:
			if wt == wireBytes {
				c, err := unmarshalConn(b)
				if err != nil {
					return err
				}
				m.UpdatedConnections = append(m.UpdatedConnections, c)
			}
		case fMsgEPs:
			if wt == wireBytes {
				e, err := unmarshalEndpoint(b)
				if err != nil {
					return err
				}
				m.UpdatedEndpoints = append(m.UpdatedEndpoints, e)
			}
		case fMsgTime:
			if wt == wireVarint {
				m.TimeMicros = int64(v)
			}
		}
	}
	return nil
}

// Marshal encodes a control message.
func (c *ControlMessage) Marshal() ([]byte, error) {
	var w protoWriter
	if c.Networks != nil {
		w.messageField(fCtrlNetworks, func(nw *protoWriter) {
			nw.bytesField(fNetV4, c.Networks.V4)
			nw.bytesField(fNetV6, c.Networks.V6)
		})
	}
	if c.PublicIPs != nil {
		w.messageField(fCtrlPublicIPs, func(nw *protoWriter) {
			for _, a := range c.PublicIPs.List {
				nw.messageField(fPubIPsList, a.marshal)
			}
		})
	}
	return w.bytes(), nil
}

// Unmarshal decodes buf into c.
func (c *ControlMessage) Unmarshal(buf []byte) error {
	*c = ControlMessage{}
	r := protoReader{buf: buf}
	for {
		fn, wt, _, b, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		switch fn {
		case fCtrlNetworks:
			if wt == wireBytes {
				nets, err := unmarshalIPNetworks(b)
				if err != nil {
					return err
				}
				c.Networks = nets
			}
		case fCtrlPublicIPs:
			if wt == wireBytes {
				ips, err := unmarshalPublicIPs(b)
				if err != nil {
					return err
				}
				c.PublicIPs = ips
			}
		}
	}
	return nil
}

func unmarshalIPNetworks(buf []byte) (*IPNetworks, error) {
	n := &IPNetworks{}
	r := protoReader{buf: buf}
	for {
		fn, wt, _, b, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		switch fn {
		case fNetV4:
			if wt == wireBytes {
				n.V4 = append([]byte(nil), b...)
			}
		case fNetV6:
			if wt == wireBytes {
				n.V6 = append([]byte(nil), b...)
			}
		}
	}
	return n, nil
}

func unmarshalPublicIPs(buf []byte) (*PublicIPs, error) {
	p := &PublicIPs{}
	r := protoReader{buf: buf}
	for {
		fn, wt, _, b, ok, err := r.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if fn == fPubIPsList && wt == wireBytes {
			a, err := unmarshalAddress(b)
			if err != nil {
				return nil, err
			}
			p.List = append(p.List, a)
		}
	}
	return p, nil
}
