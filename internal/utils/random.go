package utils

import (
	"math/rand"
	"time"

	"github.com/ecnc-dev/task-tracker/backend/internal/domain"
	"github.com/mozillazg/go-pinyin"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
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

// GenerateUsernameFromChineseName 取每个字拼音的前缀再加上 1~3 位数字，至少 3 个字符
func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

var jobTitles = []string{
	"Engineer", "Designer", "Product Manager", "QA Analyst", "Support Specialist", "Data Analyst",
}

func GenerateRandomEmployee(emailDomainName string) *domain.Employee {
	name := GenerateRandomChineseName()

	return &domain.Employee{
		Name:  name,
		Role:  jobTitles[rand.Intn(len(jobTitles))],
		Email: GenerateUsernameFromChineseName(name) + "@" + emailDomainName,
	}
}

// GenerateRandomUser 生成一个普通用户及与其配对的员工
func GenerateRandomUser(password string, emailDomainName string) (*domain.User, *domain.Employee, error) {
	name := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(name)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		Email:        username + "@" + emailDomainName,
		Role:         domain.RoleUser,
	}
	employee := &domain.Employee{
		Name:  username,
		Role:  domain.DefaultEmployeeRole,
		Email: user.Email,
	}

	return user, employee, nil
}

var taskVerbs = []string{"Review", "Update", "Write", "Fix", "Deploy", "Plan", "Test", "Document"}
var taskObjects = []string{
	"login page", "billing report", "CI pipeline", "onboarding guide", "release notes",
	"search API", "dashboard charts", "database backup", "customer feedback",
}

func GenerateRandomTaskStatus() domain.TaskStatus {
	return domain.TaskStatuses[rand.Intn(len(domain.TaskStatuses))]
}

// GenerateRandomTask 随机分配给 employeeIDs 中的一名员工，约一半的任务带有截止日期
func GenerateRandomTask(employeeIDs []string) *domain.Task {
	verb := taskVerbs[rand.Intn(len(taskVerbs))]
	object := taskObjects[rand.Intn(len(taskObjects))]

	task := &domain.Task{
		Title:      verb + " " + object,
		Status:     GenerateRandomTaskStatus(),
		EmployeeID: employeeIDs[rand.Intn(len(employeeIDs))],
	}

	if rand.Intn(3) > 0 {
		task.Description = "Auto-generated: " + verb + " the " + object + "."
	}
	if rand.Intn(2) == 0 {
		task.DueDate = domain.NewDate(time.Now().AddDate(0, 0, rand.Intn(30)+1))
	}

	return task
}
