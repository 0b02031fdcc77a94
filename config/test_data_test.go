//
// Copyright (c) 2016-2026 Snowplow Analytics Ltd. All rights reserved.
//
// This program is licensed to you under the Apache License Version 2.0,
// and you may not use this file except in compliance with the Apache License Version 2.0.
// You may obtain a copy of the Apache License Version 2.0 at http://www.apache.org/licenses/LICENSE-2.0.
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the Apache License Version 2.0 is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the Apache License Version 2.0 for the specific language governing permissions and limitations there under.
//

package config

var clusterDefinition1 = `{
  "schema": "iglu:com.snowplowanalytics.dmrunner/ClusterDefinition/avro/1-0-0",
  "data": {
    "name": "{{.name}}",
    "logUri": "s3://logging/",
    "region": "us-east-1",
    "credentials": {
      "accessKeyId": "env",
      "secretAccessKey": "env"
    },
    "roles": {
      "jobflow": "EMR_EC2_DefaultRole",
      "service": "EMR_DefaultRole"
    },
    "ec2": {
      "amiVersion": "5.9.0",
      "keyName": "dm-key",
      "location": {
        "subnetId": "subnet-123456"
      },
      "instances": {
        "master": {
          "type": "m1.medium"
        },
        "core": {
          "type": "c3.4xlarge",
          "count": 3
        },
        "task": {
          "type": "m1.medium",
          "count": 1,
          "bid": "0.015"
        }
      }
    },
    "nodeTags": [
      {"tagName": "team", "tagValue": "{{systemEnv "DM_TEST_TEAM"}}"},
      {"tagName": "orphan"}
    ],
    "bootstrapActionConfigs": [
      {"name": "Install Oozie", "path": "s3://test-bucket-managed/app-a/bootstrap/install_oozie.sh", "args": ["-v"]}
    ],
    "configurations": [
      {"classification": "spark", "properties": {"maximizeResourceAllocation": "true"}}
    ],
    "applications": ["Hadoop", "Hive", "Oozie"]
  }
}`

var clusterDefinitionMinimal = `{
  "schema": "iglu:com.snowplowanalytics.dmrunner/ClusterDefinition/avro/1-0-0",
  "data": {
    "name": "minimal",
    "ec2": {
      "amiVersion": "4.5.0",
      "location": {
        "availabilityZone": "us-east-1a"
      },
      "instances": {
        "master": {
          "type": "m1.medium"
        }
      }
    }
  }
}`

var clusterDefinitionNoInstances = `{
  "schema": "iglu:com.snowplowanalytics.dmrunner/ClusterDefinition/avro/1-0-0",
  "data": {
    "name": "broken",
    "ec2": {
      "amiVersion": "4.5.0"
    }
  }
}`

var clusterDefinitionWrongType = `{
  "schema": "iglu:com.snowplowanalytics.dmrunner/ClusterDefinition/avro/1-0-0",
  "data": {
    "name": "broken",
    "ec2": {
      "amiVersion": "4.5.0",
      "instances": {
        "master": {
          "type": "m1.medium",
          "count": "one"
        }
      }
    }
  }
}`

var playbook1 = `{
  "schema": "iglu:com.snowplowanalytics.dmrunner/Playbook/avro/1-0-0",
  "data": {
    "region": "us-east-1",
    "credentials": {
      "accessKeyId": "env",
      "secretAccessKey": "env"
    },
    "steps": [
      {
        "type": "shell",
        "name": "Test Shell Script",
        "continueOnError": true,
        "scriptLocation": "s3://test-bucket-managed/app-a/test/test_script.sh",
        "scriptArguments": ["Hello", "DM", "{{nowWithFormat "2006"}}"]
      },
      {
        "type": "hive",
        "name": "Test Hive",
        "scriptLocation": "s3://test-bucket-managed/app-a/test/test_hive.hql"
      },
      {
        "type": "pig",
        "name": "Test Pig",
        "scriptLocation": "s3://test-bucket-managed/app-a/test/test_pig.pig"
      },
      {
        "type": "oozie",
        "name": "Test Oozie",
        "workflowXmlLocation": "s3://test-bucket-managed/app-a/test/workflow.xml",
        "ooziePropertiesFileLocation": "s3://test-bucket-managed/app-a/test/job.properties"
      },
      {
        "type": "hadoopJar",
        "name": "Hadoop Jar",
        "jarLocation": "s3://test-bucket-managed/app-a/test/hadoop-mapreduce-examples-2.4.0.jar",
        "mainClass": "wordcount",
        "scriptArguments": ["{{.input}}", "{{.output}}"]
      }
    ]
  }
}`

var playbookUnknownType = `{
  "schema": "iglu:com.snowplowanalytics.dmrunner/Playbook/avro/1-0-0",
  "data": {
    "region": "us-east-1",
    "steps": [
      {"type": "spark", "name": "Spark"}
    ]
  }
}`

var playbookNoName = `{
  "schema": "iglu:com.snowplowanalytics.dmrunner/Playbook/avro/1-0-0",
  "data": {
    "region": "us-east-1",
    "steps": [
      {"type": "hive", "name": " "}
    ]
  }
}`
