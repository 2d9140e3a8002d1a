package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/google/uuid"
	"github.com/mozillazg/go-pinyin"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "庆",
	"建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

// GenerateUsernameFromChineseName takes a prefix of each syllable's pinyin
// and appends a few digits, e.g. 王伟 -> wangw42.
func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, py := range pinyinArray {
		length := rand.Intn(len(py)) + 1
		username += py[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

// DisplayNameFromChineseName renders a name as capitalized pinyin, surname first.
func DisplayNameFromChineseName(chineseName string) string {
	parts := pinyin.LazyConvert(chineseName, nil)
	if len(parts) == 0 {
		return chineseName
	}

	given := strings.Join(parts[1:], "")
	if given == "" {
		return capitalize(parts[0])
	}
	return capitalize(parts[0]) + " " + capitalize(given)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func GenerateRandomUser(password string, emailDomainName string, role domain.Role) (*domain.User, error) {
	chineseName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(chineseName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     DisplayNameFromChineseName(chineseName),
		Email:        username + "@" + emailDomainName,
		Role:         role,
	}

	return user, nil
}

var shiftDescriptions = []string{
	"warehouse sorting",
	"event staffing",
	"restaurant kitchen help",
	"retail shelf stocking",
	"flyer distribution",
	"moving assistance",
}

// GenerateRandomScheduleRecord returns a shift within the last 30 days.
// The wage is the shift length in hours at an hourly rate between 9000 and 15000.
func GenerateRandomScheduleRecord(ownerID uuid.UUID) *domain.ScheduleRecord {
	now := time.Now()
	workDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -rand.Intn(30))

	startHour := rand.Intn(11) + 6 // 06~16
	hours := rand.Intn(6) + 2      // 2~7
	hourlyRate := int64(rand.Intn(61)+90) * 100

	return &domain.ScheduleRecord{
		OwnerID:     ownerID,
		Wage:        hourlyRate * int64(hours),
		WorkDate:    workDate,
		StartTime:   fmt.Sprintf("%02d:00", startHour),
		EndTime:     fmt.Sprintf("%02d:00", startHour+hours),
		Description: shiftDescriptions[rand.Intn(len(shiftDescriptions))],
	}
}
