package ros

import (
	"time"
)

// Time is a ROS timestamp.
type Time struct {
	Secs  uint32 `json:"secs"`
	Nsecs uint32 `json:"nsecs"`
}

// NewTime converts a wall clock time to a ROS timestamp.
func NewTime(t time.Time) Time {
	ns := t.UnixNano()
	return Time{Secs: uint32(ns / int64(time.Second)), Nsecs: uint32(ns % int64(time.Second))}
}

// Time converts the timestamp to a wall clock time.
func (t Time) Time() time.Time {
	return time.Unix(int64(t.Secs), int64(t.Nsecs))
}

// Header is the std_msgs/Header carried by stamped messages.
type Header struct {
	Seq     uint32 `json:"seq"`
	Stamp   Time   `json:"stamp"`
	FrameID string `json:"frame_id"`
}

// Image is a sensor_msgs/Image.
type Image struct {
	Header      Header `json:"header"`
	Height      uint32 `json:"height"`
	Width       uint32 `json:"width"`
	Encoding    string `json:"encoding"`
	IsBigendian uint8  `json:"is_bigendian"`
	Step        uint32 `json:"step"`
	Data        []byte `json:"data"`
}

// ImageMessage is one sensor_msgs/Image record of a bag, as emitted by the JSON topic parser.
type ImageMessage struct {
	Meta struct {
		Secs  int
		Nsecs int
	}
	Data Image
}
