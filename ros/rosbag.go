// Package ros implements the ROS message types and bag reading the perception node consumes.
package ros

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// WriteTopicsJSON parses data from a rosbag into JSON, filtered by time and topic. The JSON lines
// are left in rb.TopicsAsJSON.
func WriteTopicsJSON(rb *rosbag.RosBag, startTime, endTime int64, topicsFilter []string) error {
	var timeFilterFunc func(int64) bool
	if startTime == 0 || endTime == 0 {
		timeFilterFunc = func(timestamp int64) bool {
			return true
		}
	} else {
		timeFilterFunc = func(timestamp int64) bool {
			return timestamp >= startTime && timestamp <= endTime
		}
	}

	var topicFilterFunc func(string) bool
	if len(topicsFilter) == 0 {
		topicFilterFunc = func(string) bool {
			return true
		}
	} else {
		topicsFilterMap := make(map[string]bool)
		for _, topic := range topicsFilter {
			topicsFilterMap[topic] = true
		}
		topicFilterFunc = func(topic string) bool {
			_, ok := topicsFilterMap[topic]
			return ok
		}
	}

	if err := rb.ParseTopicsToJSON("", timeFilterFunc, topicFilterFunc, false); err != nil {
		return errors.Wrapf(err, "error while parsing bag to JSON")
	}

	return nil
}

// ImageMessagesForTopic returns every sensor_msgs/Image recorded on topic, in bag order.
func ImageMessagesForTopic(rb *rosbag.RosBag, topic string) ([]ImageMessage, error) {
	if err := WriteTopicsJSON(rb, 0, 0, []string{topic}); err != nil {
		return nil, err
	}

	msgs := rb.TopicsAsJSON[topic]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}

	return decodeImageMessages(msgs, topic)
}

func decodeImageMessages(msgs *bytes.Buffer, topic string) ([]ImageMessage, error) {
	all := []ImageMessage{}
	for {
		data, err := msgs.ReadBytes('\n')
		if len(bytes.TrimSpace(data)) != 0 {
			var message ImageMessage
			if err := json.Unmarshal(data, &message); err != nil {
				return nil, errors.Wrapf(err, "bad image message %d on %s", len(all), topic)
			}
			all = append(all, message)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}

	return all, nil
}
