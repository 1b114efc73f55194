package feed

import (
	"context"
)

// MockFeed is the document served by MockClient: one release, one beta and
// one canary, newest first.
const MockFeed = `<?xml version="1.0" encoding="UTF-8"?>
<content version="1">
  <item>
    <name>Android Studio Narwhal Feature Drop | 2025.1.2 Canary 3</name>
    <build>AI-251.26094.121.2512.13699665</build>
    <version>2025.1.2</version>
    <channel>Canary</channel>
    <platformBuild>251.26094.121</platformBuild>
    <platformVersion>2025.1.2</platformVersion>
    <date>2025-06-12</date>
    <download>
      <link>https://redirector.gvt1.com/edgedl/android/studio/ide-zips/2025.1.2.3/android-studio-2025.1.2.3-mac_arm.dmg</link>
      <size>1.4 GB</size>
      <checksum>0f9a3c8e4ac0b1a1c8f8a4f0a0b3f1c2a7e9d6b5c4a3f2e1d0c9b8a7f6e5d4c3</checksum>
    </download>
  </item>
  <item>
    <name>Android Studio Narwhal | 2025.1.1 Beta 2</name>
    <build>AI-251.25410.109.2511.13638324</build>
    <version>2025.1.1</version>
    <channel>Beta</channel>
    <platformBuild>251.25410.109</platformBuild>
    <platformVersion>2025.1.1</platformVersion>
    <date>2025-05-29</date>
    <download>
      <link>https://redirector.gvt1.com/edgedl/android/studio/install/2025.1.1.9/android-studio-2025.1.1.9-mac_arm.dmg</link>
      <size>1.4 GB</size>
      <checksum>1a2b3c4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f809</checksum>
    </download>
  </item>
  <item>
    <name>Android Studio Meerkat Feature Drop | 2024.3.2 Patch 1</name>
    <build>AI-243.26053.27.2432.13536105</build>
    <version>2024.3.2</version>
    <channel>Release</channel>
    <platformBuild>243.26053.27</platformBuild>
    <platformVersion>2024.3.2</platformVersion>
    <date>2025-05-15</date>
    <download>
      <link>https://redirector.gvt1.com/edgedl/android/studio/install/2024.3.2.15/android-studio-2024.3.2.15-mac_arm.dmg</link>
      <size>1.3 GB</size>
      <checksum>9f8e7d6c5b4a39281706f5e4d3c2b1a09f8e7d6c5b4a39281706f5e4d3c2b1a0</checksum>
    </download>
    <download>
      <link>https://redirector.gvt1.com/edgedl/android/studio/ide-zips/2024.3.2.15/android-studio-2024.3.2.15-linux.tar.gz</link>
      <size>1.4 GB</size>
      <checksum>aa8e7d6c5b4a39281706f5e4d3c2b1a09f8e7d6c5b4a39281706f5e4d3c2b1aa</checksum>
    </download>
  </item>
</content>
`

// MockClient implements Client for tests and offline use
type MockClient struct {
	Data  []byte
	Err   error
	Calls int
}

// NewMockClient creates a mock client serving MockFeed
func NewMockClient() *MockClient {
	return &MockClient{Data: []byte(MockFeed)}
}

// FetchReleases returns Data or Err and counts the call
func (m *MockClient) FetchReleases(ctx context.Context) ([]byte, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Data, nil
}
